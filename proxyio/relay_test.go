package proxyio

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRelayCopiesBothDirections(t *testing.T) {
	clientA, clientB := Pipe()
	upstreamA, upstreamB := Pipe()

	done := make(chan error, 1)
	go func() { done <- Relay(clientB, upstreamB) }()

	go func() {
		clientA.Write([]byte("request"))
		clientA.CloseWrite()
	}()
	go func() {
		upstreamA.Write([]byte("response"))
		upstreamA.CloseWrite()
	}()

	got, err := io.ReadAll(upstreamA)
	require.NoError(t, err)
	require.Equal(t, "request", string(got))

	got, err = io.ReadAll(clientA)
	require.NoError(t, err)
	require.Equal(t, "response", string(got))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not complete")
	}
}

func TestRelayPropagatesHalfClose(t *testing.T) {
	clientA, clientB := Pipe()
	upstreamA, upstreamB := Pipe()

	done := make(chan error, 1)
	go func() { done <- Relay(clientB, upstreamB) }()

	clientA.CloseWrite()

	_, err := io.ReadAll(upstreamA)
	require.NoError(t, err)

	upstreamA.CloseWrite()
	clientA.Close()
	upstreamA.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not complete after half-close")
	}
}
