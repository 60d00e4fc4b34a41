package ingress

import (
	"time"

	"github.com/netroute/gatekeeper/internal/ddltimer"
	"github.com/netroute/gatekeeper/proxyio"
)

// idleWatchedConn wraps a StreamConn so every successful Read or Write
// pushes out a shared idle deadline, instead of the deadline being fixed at
// relay start. Both sides of a relay pair share one timer so bytes moving in
// either direction reset the clock for the whole connection.
type idleWatchedConn struct {
	proxyio.StreamConn
	timer *ddltimer.DeadlineTimer
	idle  time.Duration
}

func (c idleWatchedConn) Read(b []byte) (int, error) {
	n, err := c.StreamConn.Read(b)
	if n > 0 {
		c.timer.SetDeadline(time.Now().Add(c.idle))
	}
	return n, err
}

func (c idleWatchedConn) Write(b []byte) (int, error) {
	n, err := c.StreamConn.Write(b)
	if n > 0 {
		c.timer.SetDeadline(time.Now().Add(c.idle))
	}
	return n, err
}

// relayWithIdleTimeout runs [proxyio.Relay] between client and upstream,
// closing both sides if neither has moved a byte for idle.
func relayWithIdleTimeout(client, upstream proxyio.StreamConn, idle time.Duration) error {
	timer := ddltimer.New()
	defer timer.Stop()
	timer.SetDeadline(time.Now().Add(idle))

	watchedClient := idleWatchedConn{client, timer, idle}
	watchedUpstream := idleWatchedConn{upstream, timer, idle}

	done := make(chan error, 1)
	go func() { done <- proxyio.Relay(watchedClient, watchedUpstream) }()

	select {
	case err := <-done:
		return err
	case <-timer.Timeout():
		client.Close()
		upstream.Close()
		return <-done
	}
}
