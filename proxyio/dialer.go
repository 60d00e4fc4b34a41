package proxyio

import "context"

// Dialer opens an egress byte-stream to a destination, possibly by
// negotiating an intermediate proxy handshake first. Every upstream
// dialer variant (direct TCP, SOCKS5 tunnel, HTTP/HTTPS CONNECT tunnel) and
// the policy dialer that composes them implement this single contract, so
// an ingress server never needs to know which one produced its egress
// stream.
type Dialer interface {
	Connect(ctx context.Context, dest Destination) (StreamConn, error)
}

// DialerFunc adapts a plain function to a Dialer.
type DialerFunc func(ctx context.Context, dest Destination) (StreamConn, error)

// Connect calls f.
func (f DialerFunc) Connect(ctx context.Context, dest Destination) (StreamConn, error) {
	return f(ctx, dest)
}
