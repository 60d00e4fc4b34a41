package socks5

import (
	"context"
	"fmt"
	"io"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

// Credentials holds the Basic-auth username and password a [Client] sends
// during subnegotiation. A nil *Credentials means NoAuth only.
type Credentials struct {
	Username []byte
	Password []byte
}

// NewCredentials validates and builds a Credentials, per the RFC 1929
// constraint that both fields are 1..255 octets.
func NewCredentials(username, password []byte) (*Credentials, error) {
	if len(username) == 0 || len(username) > 255 {
		return nil, fmt.Errorf("socks5: username must be 1..255 bytes, got %d", len(username))
	}
	if len(password) == 0 || len(password) > 255 {
		return nil, fmt.Errorf("socks5: password must be 1..255 bytes, got %d", len(password))
	}
	return &Credentials{Username: username, Password: password}, nil
}

// Client is the SOCKS5 dialer's state machine: it owns the TCP connection to
// an upstream SOCKS5 proxy and drives the method-negotiation,
// subnegotiation, and CONNECT handshake described in RFC 1928/1929.
type Client struct {
	proxyAddr string
	tcp       proxyio.TCPDialer
	cred      *Credentials
}

// NewClient builds a Client that dials proxyAddr ("host:port") for each
// connection and authenticates with cred (nil for NoAuth).
func NewClient(proxyAddr string, cred *Credentials) *Client {
	return &Client{proxyAddr: proxyAddr, cred: cred}
}

// Connect implements the dialer contract: it opens a TCP connection to the
// configured proxy, negotiates a method and (if configured) Basic auth, then
// issues a CONNECT request for dest. On any failure the intermediate
// connection is closed. A failure during method negotiation, auth, or while
// sending the request is a [proxyerr.Error] of kind
// KindProxyServerUnreachable; a non-success REP in the proxy's reply is
// reported as the matching named kind (see errForReply), and an I/O or
// address-parse failure while reading that reply is returned as is. The
// pre-TCP dial error passes through unwrapped.
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

	if err := c.negotiateMethod(conn); err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindProxyServerUnreachable, "method negotiation", err)
	}
	if err := c.sendConnectRequest(conn, dest); err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindProxyServerUnreachable, "connect request", err)
	}
	if err := c.readConnectReply(conn); err != nil {
		return nil, err
	}

	ok = true
	return conn, nil
}

func (c *Client) negotiateMethod(conn proxyio.StreamConn) error {
	methods := []byte{MethodNoAuth}
	if c.cred != nil {
		methods = []byte{MethodUserPassAuth}
	}
	req := append([]byte{0x05, byte(len(methods))}, methods...)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	var reply [2]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return err
	}
	if reply[0] != 0x05 {
		return proxyerr.New(proxyerr.KindInvalidReplyVersion, fmt.Sprintf("got %d", reply[0]))
	}
	switch reply[1] {
	case MethodNoAuth:
		if c.cred != nil {
			return proxyerr.New(proxyerr.KindUnknownMethod, "proxy accepted NoAuth but credentials were configured")
		}
		return nil
	case MethodUserPassAuth:
		if c.cred == nil {
			return proxyerr.New(proxyerr.KindUnknownMethod, "proxy required auth but no credentials were configured")
		}
		return c.authenticate(conn)
	case MethodNoAcceptable:
		return proxyerr.New(proxyerr.KindNoAcceptableMethods, "")
	default:
		return proxyerr.New(proxyerr.KindUnknownMethod, fmt.Sprintf("method 0x%02x", reply[1]))
	}
}

func (c *Client) authenticate(conn proxyio.StreamConn) error {
	req := make([]byte, 0, 3+len(c.cred.Username)+len(c.cred.Password))
	req = append(req, 0x01, byte(len(c.cred.Username)))
	req = append(req, c.cred.Username...)
	req = append(req, byte(len(c.cred.Password)))
	req = append(req, c.cred.Password...)
	if _, err := conn.Write(req); err != nil {
		return err
	}

	var reply [2]byte
	if _, err := io.ReadFull(conn, reply[:]); err != nil {
		return err
	}
	if reply[0] != 0x01 {
		return proxyerr.New(proxyerr.KindInvalidReplyVersion, fmt.Sprintf("auth version %d", reply[0]))
	}
	if reply[1] != AuthSuccess {
		return proxyerr.WithCode(proxyerr.KindPasswordAuthFailure, reply[1], "")
	}
	return nil
}

func (c *Client) sendConnectRequest(conn proxyio.StreamConn, dest proxyio.Destination) error {
	req := []byte{0x05, CmdConnect, 0x00}
	req, err := dest.AppendSOCKS5(req)
	if err != nil {
		return err
	}
	_, err = conn.Write(req)
	return err
}

func (c *Client) readConnectReply(conn proxyio.StreamConn) error {
	var head [3]byte
	if _, err := io.ReadFull(conn, head[:]); err != nil {
		return err
	}
	if head[0] != 0x05 {
		return proxyerr.New(proxyerr.KindInvalidReplyVersion, fmt.Sprintf("got %d", head[0]))
	}
	rep := head[1]

	if _, err := proxyio.ReadSOCKS5Destination(conn); err != nil {
		return err
	}
	if rep != RepSucceeded {
		return errForReply(rep)
	}
	return nil
}
