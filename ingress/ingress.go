// Package ingress accepts client connections on the SOCKS5 and HTTP-CONNECT
// listening sockets, drives the corresponding wire state machine, consults a
// [proxyio.Dialer] (typically a *policy.Dialer) for the egress stream, and
// relays bytes until either side closes. Grounded on the teacher's
// http.Serve-based accept loop in x/examples/local-proxy/main.go, generalized
// to a worker-per-connection goroutine model shared by both protocols
// instead of delegating to net/http's own server loop.
package ingress

import (
	"context"
	"errors"
	"log"
	"net"
	"strconv"
	"time"

	"github.com/netroute/gatekeeper/internal/ddltimer"
	"github.com/netroute/gatekeeper/proxyio"
)

// NegotiationTimeout bounds how long the ingress handshake (greeting,
// auth, request, or the HTTP-CONNECT equivalent) may take before the
// connection is abandoned.
const NegotiationTimeout = 30 * time.Second

// DialTimeout bounds how long the configured dialer may take to establish
// the egress stream.
const DialTimeout = 30 * time.Second

// IdleRelayTimeout bounds how long the relay phase may sit with no bytes
// flowing in either direction before it is torn down.
const IdleRelayTimeout = 30 * time.Second

// Handler drives one accepted connection to completion: negotiate, dial,
// reply, relay.
type Handler interface {
	Serve(ctx context.Context, conn proxyio.StreamConn)
}

// Serve runs the accept loop on listener, spawning one goroutine per
// accepted connection via handler. It returns when listener.Accept fails
// (typically because ctx was cancelled and the caller closed listener).
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Temporary() {
				continue
			}
			return err
		}
		streamConn, ok := conn.(proxyio.StreamConn)
		if !ok {
			log.Printf("ingress: accepted connection does not support half-close, closing")
			conn.Close()
			continue
		}
		go handler.Serve(ctx, streamConn)
	}
}

// destinationFromAddr builds a socket-form Destination from a dialed
// connection's local address, for the bound-address field of a success
// reply.
func destinationFromAddr(addr net.Addr) proxyio.Destination {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return proxyio.DefaultDestination()
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return proxyio.DefaultDestination()
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return proxyio.DefaultDestination()
	}
	return proxyio.NewSocketDestination(ip, uint16(port))
}

// withDeadline applies a [ddltimer.DeadlineTimer]-style bound to conn for the
// duration of fn, clearing it again before returning.
func withDeadline(conn proxyio.StreamConn, d time.Duration, fn func() error) error {
	timer := ddltimer.New()
	defer timer.Stop()
	timer.SetDeadline(time.Now().Add(d))

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-timer.Timeout():
		conn.Close()
		return <-done
	}
}
