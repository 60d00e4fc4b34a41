package httpconnect

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

// Credentials holds the single accepted username/password pair for a
// [Server] configured to require Basic auth.
type Credentials struct {
	Username string
	Password string
}

// Server drives the ingress HTTP-CONNECT handshake: it reads a request
// line and headers, optionally enforces Basic auth, and parses the target
// host into a domain-form [proxyio.Destination].
type Server struct {
	// Credentials, if non-nil, requires a matching Proxy-Authorization
	// header. Nil means no authentication is enforced.
	Credentials *Credentials
}

// Negotiate reads the CONNECT request from r and returns the destination
// the caller should dial. On an auth failure it writes the 407 response to
// w itself (per the design's ingress behaviour) and returns an error; the
// caller must not write a second response in that case. On a malformed
// request it returns an error without writing anything, and the caller
// should simply close the connection.
func (s *Server) Negotiate(r *bufio.Reader, w writerFlusher) (proxyio.Destination, error) {
	requestLine, err := readCRLFLine(r)
	if err != nil {
		return proxyio.Destination{}, err
	}
	method, host, err := parseRequestLine(requestLine)
	if err != nil {
		return proxyio.Destination{}, err
	}

	headers, err := readHeaders(r)
	if err != nil {
		return proxyio.Destination{}, err
	}

	if method != "CONNECT" {
		return proxyio.Destination{}, proxyerr.New(proxyerr.KindCommandNotSupported, fmt.Sprintf("method %s", method))
	}

	if s.Credentials != nil {
		if !authorized(headers, s.Credentials) {
			w.Write([]byte("HTTP/1.1 407 Proxy Authentication Required\r\nProxy-Authenticate: Basic realm=Proxy Server\r\n\r\n"))
			return proxyio.Destination{}, proxyerr.New(proxyerr.KindProxyDenied, "")
		}
	}

	return parseHostAuthority(host)
}

// writerFlusher is the minimal surface Negotiate needs to send a 407
// response; a net.Conn or bufio.Writer both satisfy it trivially.
type writerFlusher interface {
	Write([]byte) (int, error)
}

// RespondOK writes the ingress success reply once an egress stream has been
// established.
func RespondOK(w writerFlusher) error {
	_, err := w.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
	return err
}

// RespondUnavailable writes the ingress failure reply for an upstream dial
// error.
func RespondUnavailable(w writerFlusher) error {
	_, err := w.Write([]byte("HTTP/1.1 503 Service Unavailable\r\n\r\n"))
	return err
}

func parseRequestLine(line string) (method, host string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return "", "", fmt.Errorf("httpconnect: malformed request line %q", line)
	}
	return parts[0], parts[1], nil
}

func readHeaders(r *bufio.Reader) (map[string]string, error) {
	headers := make(map[string]string)
	for {
		line, err := readCRLFLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			return headers, nil
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
}

func authorized(headers map[string]string, cred *Credentials) bool {
	header, ok := headers["proxy-authorization"]
	if !ok {
		return false
	}
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	return string(decoded) == cred.Username+":"+cred.Password
}

// parseHostAuthority splits "host:port" on the last colon, per the design's
// rule that an absent colon defaults the port to 443 (the HTTPS-tunnel
// default, matching the egress dialer's own scheme-defaulting behaviour). A
// host that parses as an IP literal builds a socket-form destination; any
// other host builds a domain-form one so resolution can be deferred to the
// chosen egress dialer.
func parseHostAuthority(authority string) (proxyio.Destination, error) {
	host := authority
	portStr := "443"
	if idx := strings.LastIndex(authority, ":"); idx >= 0 {
		host = authority[:idx]
		portStr = authority[idx+1:]
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return proxyio.Destination{}, fmt.Errorf("httpconnect: invalid port in authority %q: %w", authority, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return proxyio.NewSocketDestination(ip, uint16(port)), nil
	}
	return proxyio.NewDomainDestination(host, uint16(port))
}
