// Command gatekeeperd runs a policy-driven forward proxy: it accepts
// ingress connections over SOCKS5 and HTTP CONNECT, classifies each
// destination against a rule set, and dials out directly or through a
// configured upstream proxy. Grounded on the teacher SDK's local-proxy and
// soax-relay example commands, generalized from a single fixed transport to
// the config-driven policy dialer this project builds.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/netroute/gatekeeper/config"
	"github.com/netroute/gatekeeper/dialer"
	"github.com/netroute/gatekeeper/httpconnect"
	"github.com/netroute/gatekeeper/ingress"
	"github.com/netroute/gatekeeper/policy"
	"github.com/netroute/gatekeeper/proxyio"
	"github.com/netroute/gatekeeper/rules"
	"github.com/netroute/gatekeeper/socks5"
)

func main() {
	configPath := flag.String("config", "gatekeeperd.toml", "Path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("gatekeeperd: could not load config: %v", err)
	}

	ruleSet, err := loadRules(cfg.Rules)
	if err != nil {
		log.Fatalf("gatekeeperd: could not parse rules: %v", err)
	}

	proxyDialer, err := buildProxyDialer(cfg)
	if err != nil {
		log.Fatalf("gatekeeperd: could not build upstream dialer: %v", err)
	}

	// proxy_mode governs the ambient policy layered under the rule set:
	// "direct" ignores any configured upstream entirely, "proxy" forces
	// every connection through it regardless of rules, and "auto" lets
	// the rule set decide per-destination with proxy as the fallback for
	// an unmatched (Default) decision.
	policyDialer := &policy.Dialer{
		Direct:         dialer.NewDirect(),
		Proxy:          proxyDialer,
		Rules:          ruleSet,
		DefaultToProxy: cfg.ProxyMode == config.ProxyModeAuto,
		ForceProxy:     cfg.ProxyMode == config.ProxyModeProxy,
	}
	if cfg.ProxyMode == config.ProxyModeDirect {
		policyDialer.Proxy = dialer.NewDirect()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if cfg.SOCKS5Listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveSOCKS5(ctx, cfg, policyDialer)
		}()
	}
	if cfg.HTTPListen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTPConnect(ctx, cfg, policyDialer)
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig
	cancel()
	wg.Wait()
}

// loadRules parses the config's inline rule-list text into a RuleSet,
// reporting the offending line on failure.
func loadRules(lines []string) (rules.RuleSet, error) {
	scanner := bufio.NewScanner(strings.NewReader(strings.Join(lines, "\n")))
	return rules.ParseRuleSet(scanner)
}

// buildProxyDialer builds the single upstream proxy dialer variant named by
// the config's selected proxy, or a Direct dialer if the config is
// direct-only.
func buildProxyDialer(cfg *config.Config) (proxyio.Dialer, error) {
	upstream, ok := cfg.SelectedUpstream()
	if !ok {
		return dialer.NewDirect(), nil
	}
	addr := fmt.Sprintf("%s:%d", upstream.Host, upstream.Port)
	switch upstream.Protocol {
	case "socks5":
		var cred *socks5.Credentials
		if upstream.Username != "" {
			cred = &socks5.Credentials{Username: upstream.Username, Password: upstream.Password}
		}
		return dialer.NewSOCKS5(addr, cred), nil
	case "http":
		return dialer.NewHTTP(addr, upstream.Username, upstream.Password), nil
	case "https":
		return dialer.NewHTTPS(addr, upstream.Host, upstream.Username, upstream.Password), nil
	default:
		return nil, fmt.Errorf("gatekeeperd: unknown upstream protocol %q", upstream.Protocol)
	}
}

func ingressCredentials(cfg *config.Config) (*socks5.Credentials, *httpconnect.Credentials) {
	if cfg.IngressAuth == nil {
		return nil, nil
	}
	return &socks5.Credentials{Username: cfg.IngressAuth.Username, Password: cfg.IngressAuth.Password},
		&httpconnect.Credentials{Username: cfg.IngressAuth.Username, Password: cfg.IngressAuth.Password}
}

func serveSOCKS5(ctx context.Context, cfg *config.Config, d proxyio.Dialer) {
	listener, err := net.Listen("tcp", cfg.SOCKS5Listen)
	if err != nil {
		log.Fatalf("gatekeeperd: could not listen on %s: %v", cfg.SOCKS5Listen, err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	socksCred, _ := ingressCredentials(cfg)
	handler := &ingress.SOCKS5Handler{Server: &socks5.Server{Credentials: socksCred}, Dialer: d}
	log.Printf("gatekeeperd: socks5 listening on %s", listener.Addr())
	if err := ingress.Serve(ctx, listener, handler); err != nil && ctx.Err() == nil {
		log.Fatalf("gatekeeperd: socks5 listener failed: %v", err)
	}
}

func serveHTTPConnect(ctx context.Context, cfg *config.Config, d proxyio.Dialer) {
	listener, err := net.Listen("tcp", cfg.HTTPListen)
	if err != nil {
		log.Fatalf("gatekeeperd: could not listen on %s: %v", cfg.HTTPListen, err)
	}
	defer listener.Close()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	_, httpCred := ingressCredentials(cfg)
	handler := &ingress.HTTPConnectHandler{Server: &httpconnect.Server{Credentials: httpCred}, Dialer: d}
	log.Printf("gatekeeperd: http-connect listening on %s", listener.Addr())
	if err := ingress.Serve(ctx, listener, handler); err != nil && ctx.Err() == nil {
		log.Fatalf("gatekeeperd: http-connect listener failed: %v", err)
	}
}
