package dialer

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

func TestDirectConnectsToSocketDestination(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := listener.Accept()
		require.NoError(t, err)
		conn.Close()
	}()

	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	dest := proxyio.NewSocketDestination(net.ParseIP("127.0.0.1"), port)

	d := NewDirect()
	conn, err := d.Connect(context.Background(), dest)
	require.NoError(t, err)
	conn.Close()
	wg.Wait()
}

func TestDirectResolvesDomainAndDials(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		conn, err := listener.Accept()
		require.NoError(t, err)
		conn.Close()
	}()

	port := uint16(listener.Addr().(*net.TCPAddr).Port)
	dest, err := proxyio.NewDomainDestination("resolves-to-loopback.test", port)
	require.NoError(t, err)

	d := NewDirect()
	d.LookupIPv4 = func(ctx context.Context, host string) ([]net.IP, error) {
		return []net.IP{net.ParseIP("127.0.0.1")}, nil
	}
	d.LookupIPv6 = func(ctx context.Context, host string) ([]net.IP, error) {
		return nil, nil
	}

	conn, err := d.Connect(context.Background(), dest)
	require.NoError(t, err)
	conn.Close()
	wg.Wait()
}

func TestDirectReturnsInvalidDstAddressWhenUnresolved(t *testing.T) {
	dest, err := proxyio.NewDomainDestination("nowhere.invalid", 80)
	require.NoError(t, err)

	d := NewDirect()
	d.LookupIPv4 = func(ctx context.Context, host string) ([]net.IP, error) { return nil, nil }
	d.LookupIPv6 = func(ctx context.Context, host string) ([]net.IP, error) { return nil, nil }

	_, err = d.Connect(context.Background(), dest)
	require.Error(t, err)
	kind, ok := proxyerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, proxyerr.KindInvalidDstAddress, kind)
}

func TestDirectPropagatesLookupFailure(t *testing.T) {
	dest, err := proxyio.NewDomainDestination("broken.invalid", 80)
	require.NoError(t, err)

	d := NewDirect()
	lookupErr := fmt.Errorf("no such host")
	d.LookupIPv4 = func(ctx context.Context, host string) ([]net.IP, error) { return nil, lookupErr }
	d.LookupIPv6 = func(ctx context.Context, host string) ([]net.IP, error) { return nil, lookupErr }

	_, err = d.Connect(context.Background(), dest)
	require.Error(t, err)
}
