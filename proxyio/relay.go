package proxyio

import (
	"errors"
	"io"
	"net"
	"sync"
)

// Relay pumps bytes in both directions between client and upstream until
// both halves have reached EOF or an error, then returns the first non-EOF
// error encountered (or nil if both halves closed cleanly). It is the sole
// place a completed tunnel's data plane lives: once negotiation on both the
// ingress and egress side has finished, every proxy mode hands its two
// StreamConns to Relay and blocks until it returns.
//
// Each direction is copied by its own goroutine. When a direction's reader
// returns EOF, Relay calls CloseWrite on the opposite connection so the
// other direction's peer observes a clean half-close rather than hanging;
// an error closing an already-closed connection is not itself treated as a
// relay failure.
func Relay(client, upstream StreamConn) error {
	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		errs[0] = copyHalf(upstream, client)
	}()
	go func() {
		defer wg.Done()
		errs[1] = copyHalf(client, upstream)
	}()
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// copyHalf copies from src to dst until src reaches EOF, then half-closes
// dst's write side so the peer on the other end of dst sees the shutdown.
func copyHalf(dst, src StreamConn) error {
	_, err := io.Copy(dst, src)
	src.CloseRead()
	if closeErr := dst.CloseWrite(); closeErr != nil && err == nil {
		if !isAlreadyClosed(closeErr) {
			err = closeErr
		}
	}
	if isAlreadyClosed(err) {
		return nil
	}
	return err
}

// isAlreadyClosed reports whether err signals that a connection was already
// shut down by the peer or by a concurrent call, conditions Relay treats as
// a clean completion rather than a failure.
func isAlreadyClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
