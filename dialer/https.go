package dialer

import (
	"context"

	"github.com/netroute/gatekeeper/httpconnect"
	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
	"github.com/netroute/gatekeeper/tlsdial"
)

// HTTPS is an upstream dialer that performs a TLS handshake against the
// proxy before running the same CONNECT request/response exchange the plain
// HTTP dialer uses. The proxy address's hostname is used as the SNI value,
// per the design's "SNI = proxy hostname" requirement.
type HTTPS struct {
	proxyAddr          string
	proxyHost          string
	username, password string
	tcp                proxyio.TCPDialer
}

var _ proxyio.Dialer = (*HTTPS)(nil)

// NewHTTPS builds an HTTPS-CONNECT upstream dialer. proxyHost is the
// hostname used for SNI and certificate verification; proxyAddr is the
// host:port actually dialed (they usually share the same host).
func NewHTTPS(proxyAddr, proxyHost, username, password string) *HTTPS {
	return &HTTPS{proxyAddr: proxyAddr, proxyHost: proxyHost, username: username, password: password}
}

// Connect implements [proxyio.Dialer]. Socket-address destinations are
// accepted (the tunnel's target, not the proxy, may be an IP); only the
// proxy connection itself requires a hostname for TLS.
func (d *HTTPS) Connect(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
	tcpConn, err := d.tcp.DialTCP(ctx, d.proxyAddr)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			tcpConn.Close()
		}
	}()

	tlsConn, err := tlsdial.WrapConn(ctx, tcpConn, d.proxyHost)
	if err != nil {
		return nil, proxyerr.Wrap(proxyerr.KindProxyServerUnreachable, "TLS handshake", err)
	}

	if err := httpconnect.Negotiate(tlsConn, dest, d.username, d.password); err != nil {
		return nil, err
	}

	ok = true
	return tlsConn, nil
}
