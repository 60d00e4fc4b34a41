// Package tlsdial wraps a TCP connection to an upstream HTTPS-CONNECT proxy
// in a TLS client handshake, replicating Go's standard certificate
// verification through an explicit VerifyConnection callback so SNI and the
// certificate name can be set independently.
package tlsdial

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"strings"

	"github.com/netroute/gatekeeper/proxyio"
)

// streamConn adapts a [tls.Conn] to [proxyio.StreamConn]: reads and writes
// go through the TLS record layer. CloseRead forwards directly to the wrapped
// plaintext connection since tls.Conn has no CloseRead of its own; CloseWrite
// sends the TLS close_notify and then half-closes the wrapped connection.
type streamConn struct {
	*tls.Conn
	inner proxyio.StreamConn
}

var _ proxyio.StreamConn = (*streamConn)(nil)

func (c streamConn) CloseWrite() error {
	return errors.Join(c.Conn.CloseWrite(), c.inner.CloseWrite())
}

func (c streamConn) CloseRead() error {
	return c.inner.CloseRead()
}

// ClientConfig encodes the parameters for a TLS client handshake against an
// upstream HTTPS-CONNECT proxy.
type ClientConfig struct {
	// ServerName is sent as the Server Name Indication (SNI).
	ServerName string
	// CertificateName is the hostname checked against the leaf
	// certificate; defaults to ServerName when empty.
	CertificateName string
	NextProtos      []string
	SessionCache    tls.ClientSessionCache
}

func (cfg *ClientConfig) toStdConfig() *tls.Config {
	return &tls.Config{
		ServerName:         cfg.ServerName,
		NextProtos:         cfg.NextProtos,
		ClientSessionCache: cfg.SessionCache,
		// InsecureSkipVerify disables only the built-in verifier; the
		// VerifyConnection callback below replicates it against
		// CertificateName instead of ServerName, so the two can differ.
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			certName := cfg.CertificateName
			if certName == "" {
				certName = cfg.ServerName
			}
			opts := x509.VerifyOptions{
				DNSName:       certName,
				Intermediates: x509.NewCertPool(),
			}
			for _, cert := range cs.PeerCertificates[1:] {
				opts.Intermediates.AddCert(cert)
			}
			_, err := cs.PeerCertificates[0].Verify(opts)
			return err
		},
	}
}

// ClientOption configures a ClientConfig derived from the dialed hostname.
type ClientOption func(host string, config *ClientConfig)

// WithSNI overrides the Server Name Indication sent during the handshake,
// independent of the hostname used for certificate verification.
func WithSNI(hostName string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.ServerName = hostName
	}
}

// WithCertificateName overrides the hostname checked against the leaf
// certificate. Defaults to the dialed hostname.
func WithCertificateName(hostname string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.CertificateName = hostname
	}
}

// WithALPN sets the ALPN protocol id list.
func WithALPN(protocolNameList []string) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.NextProtos = protocolNameList
	}
}

// WithSessionCache enables TLS session resumption.
func WithSessionCache(cache tls.ClientSessionCache) ClientOption {
	return func(_ string, config *ClientConfig) {
		config.SessionCache = cache
	}
}

func normalizeHost(host string) string { return strings.ToLower(host) }

// WrapConn performs a TLS client handshake over conn, using host as both
// the default SNI and the default certificate name before options are
// applied. The returned connection satisfies [proxyio.StreamConn].
func WrapConn(ctx context.Context, conn proxyio.StreamConn, host string, options ...ClientOption) (proxyio.StreamConn, error) {
	cfg := ClientConfig{ServerName: host, CertificateName: host}
	normHost := normalizeHost(host)
	for _, option := range options {
		option(normHost, &cfg)
	}
	tlsConn := tls.Client(conn, cfg.toStdConfig())
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return streamConn{tlsConn, conn}, nil
}
