// Package httpconnect implements the HTTP CONNECT tunnel handshake on both
// proxy roles with a hand-rolled CRLF line reader/writer, not net/http: the
// wire contract only needs a request line, a handful of headers, and a
// status line, and a raw implementation lets the client reuse the same
// [proxyio.StreamConn] the rest of the pipeline already speaks.
package httpconnect

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

// userAgent is sent on every CONNECT request this client issues.
const userAgent = "gatekeeper/1.0"

// Client dials an upstream HTTP-CONNECT proxy over a plain TCP connection.
// An HTTPS-CONNECT dialer wraps the same Client's request/response exchange
// around a TLS-wrapped connection instead (see the dialer package).
type Client struct {
	proxyAddr string
	tcp       proxyio.TCPDialer
	username  string
	password  string
}

// NewClient builds a Client that dials proxyAddr for each connection, with
// optional Basic auth credentials (empty strings mean no Proxy-Authorization
// header).
func NewClient(proxyAddr, username, password string) *Client {
	return &Client{proxyAddr: proxyAddr, username: username, password: password}
}

// Connect implements the dialer contract: it opens a TCP connection to the
// configured proxy, issues a CONNECT request for dest, and returns the
// tunnel ready for payload bytes once the proxy replies 200.
func (c *Client) Connect(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
	conn, err := c.tcp.DialTCP(ctx, c.proxyAddr)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			conn.Close()
		}
	}()

	if err := Negotiate(conn, dest, c.username, c.password); err != nil {
		return nil, err
	}

	ok = true
	return conn, nil
}

// Negotiate writes a CONNECT request for dest to conn and reads back the
// proxy's response, returning nil only on a 200 status. It is exported so
// the HTTPS-CONNECT dialer can run the identical exchange over a
// TLS-wrapped conn after its own handshake.
func Negotiate(conn io.ReadWriter, dest proxyio.Destination, username, password string) error {
	if err := RequestConnect(conn, dest.HostHeader(), username, password); err != nil {
		return proxyerr.Wrap(proxyerr.KindProxyServerUnreachable, "CONNECT request", err)
	}
	return readConnectResponse(bufio.NewReader(conn))
}

// RequestConnect writes a CONNECT request line and headers to w, per the
// wire form:
//
//	CONNECT host:port HTTP/1.1\r\n
//	Host: host:port\r\n
//	Proxy-Connection: keep-alive\r\n
//	[Proxy-Authorization: Basic base64(user:pass)\r\n]
//	User-Agent: gatekeeper/1.0\r\n
//	\r\n
//
// target may carry an "http://" or "https://" scheme prefix, which is
// stripped; an omitted port defaults to 80 for an http:// target and 443
// otherwise, matching the egress HTTPS dialer's assumption.
func RequestConnect(w io.Writer, target, username, password string) error {
	host := normalizeTarget(target)

	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\n", host)
	fmt.Fprintf(&b, "Host: %s\r\n", host)
	b.WriteString("Proxy-Connection: keep-alive\r\n")
	if username != "" || password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", token)
	}
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("\r\n")

	_, err := w.Write([]byte(b.String()))
	return err
}

// normalizeTarget strips an http(s):// scheme prefix and defaults a missing
// port to 80 (http) or 443 (https, or no scheme at all).
func normalizeTarget(target string) string {
	isHTTP := false
	host := target
	if stripped, found := strings.CutPrefix(target, "http://"); found {
		isHTTP = true
		host = stripped
	} else if stripped, found := strings.CutPrefix(target, "https://"); found {
		host = stripped
	}

	if _, _, err := net.SplitHostPort(host); err != nil {
		if isHTTP {
			host += ":80"
		} else {
			host += ":443"
		}
	}
	return host
}

// readConnectResponse reads an HTTP status line and headers, consumes and
// discards any Content-Length body, and returns nil only for status 200.
func readConnectResponse(r *bufio.Reader) error {
	statusLine, err := readCRLFLine(r)
	if err != nil {
		return err
	}
	code, err := parseStatusCode(statusLine)
	if err != nil {
		return err
	}

	contentLength := 0
	for {
		line, err := readCRLFLine(r)
		if err != nil {
			return err
		}
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err == nil {
				contentLength = n
			}
		}
	}
	if contentLength > 0 {
		if _, err := io.CopyN(io.Discard, r, int64(contentLength)); err != nil {
			return err
		}
	}

	if code != 200 {
		return proxyerr.WithCode(proxyerr.KindProxyServerUnreachable, byte(code), fmt.Sprintf("CONNECT status %d", code))
	}
	return nil
}

func parseStatusCode(statusLine string) (int, error) {
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return 0, fmt.Errorf("httpconnect: malformed status line %q", statusLine)
	}
	return strconv.Atoi(parts[1])
}

// readCRLFLine reads a single line terminated by "\r\n" and returns it with
// the terminator stripped.
func readCRLFLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
