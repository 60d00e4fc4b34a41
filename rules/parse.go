package rules

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/netroute/gatekeeper/proxyerr"
)

// ParseError reports the textual rule line that failed to parse alongside
// the underlying cause, so config loaders can report a line number.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("rules: invalid rule %q: %v", e.Line, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// Parse parses a single rule line in the grammar
// "TAG,PATTERN,DECISION[,ARG]*", case-insensitive on TAG and DECISION.
func Parse(line string) (Rule, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 3 {
		return Rule{}, &ParseError{Line: line, Err: proxyerr.New(proxyerr.KindInvalidRule, "expected TAG,PATTERN,DECISION")}
	}
	tag, patArg, decArg, args := fields[0], fields[1], fields[2], fields[3:]

	pattern, err := parsePattern(tag, patArg)
	if err != nil {
		return Rule{}, &ParseError{Line: line, Err: err}
	}

	decision, err := parseDecision(decArg, args)
	if err != nil {
		return Rule{}, &ParseError{Line: line, Err: err}
	}

	return Rule{Pattern: pattern, Decision: decision}, nil
}

func parsePattern(tag, arg string) (Pattern, error) {
	switch strings.ToUpper(tag) {
	case "DOMAIN":
		return DomainExact(arg), nil
	case "DOMAIN-SUFFIX":
		return DomainSuffix(arg), nil
	case "DOMAIN-KEYWORD":
		return DomainKeyword(arg), nil
	case "DOMAIN-REGEX":
		pattern, err := NewDomainRegex(arg)
		if err != nil {
			return nil, proxyerr.Wrap(proxyerr.KindInvalidRegex, arg, err)
		}
		return pattern, nil
	case "IPV4", "IPV6":
		ip := net.ParseIP(arg)
		if ip == nil {
			return nil, proxyerr.New(proxyerr.KindInvalidAddr, arg)
		}
		return NewIPExact(ip), nil
	case "IP-CIDR", "IP-CIDR6":
		return parseCIDR(arg)
	default:
		return nil, proxyerr.New(proxyerr.KindUnknownRule, tag)
	}
}

func parseCIDR(arg string) (Pattern, error) {
	slash := strings.IndexByte(arg, '/')
	if slash < 0 {
		return nil, proxyerr.New(proxyerr.KindInvalidSubnet, arg)
	}
	addrPart, prefixPart := arg[:slash], arg[slash+1:]
	ip := net.ParseIP(addrPart)
	if ip == nil {
		return nil, proxyerr.New(proxyerr.KindInvalidAddr, addrPart)
	}
	prefix, err := strconv.Atoi(prefixPart)
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindInvalidSubnet, prefixPart, err)
	}
	return NewIPCidr(ip, prefix), nil
}

func parseDecision(arg string, args []string) (Decision, error) {
	switch strings.ToLower(arg) {
	case "direct":
		return DecisionDirect(), nil
	case "proxy":
		remoteDNS := false
		for _, a := range args {
			if strings.EqualFold(a, "force-remote-dns") {
				remoteDNS = true
			}
		}
		return DecisionProxy(remoteDNS), nil
	case "default":
		return DecisionDefault(), nil
	case "deny":
		return DecisionDeny(), nil
	default:
		return Decision{}, proxyerr.New(proxyerr.KindInvalidDecision, arg)
	}
}

// ParseRuleSet parses one rule per line from r. Blank lines and lines whose
// first non-whitespace character is '#' are ignored, matching the config
// loader's inline rule-list convention.
func ParseRuleSet(r *bufio.Scanner) (RuleSet, error) {
	var rs RuleSet
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := Parse(line)
		if err != nil {
			return nil, err
		}
		rs = append(rs, rule)
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return rs, nil
}
