package ingress

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
	"github.com/netroute/gatekeeper/socks5"
)

func TestSOCKS5HandlerDialsAndRelays(t *testing.T) {
	client, server := proxyio.Pipe()
	egressClient, egressServer := proxyio.Pipe()

	dialed := make(chan proxyio.Destination, 1)
	dialer := proxyio.DialerFunc(func(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
		dialed <- dest
		return egressServer, nil
	})

	handler := &SOCKS5Handler{Server: &socks5.Server{}, Dialer: dialer}
	go handler.Serve(context.Background(), server)

	// Greeting: version 5, 1 method, NoAuth.
	_, err := client.Write([]byte{0x05, 0x01, byte(socks5.MethodNoAuth)})
	require.NoError(t, err)
	var greetingReply [2]byte
	_, err = io.ReadFull(client, greetingReply[:])
	require.NoError(t, err)
	require.Equal(t, [2]byte{0x05, byte(socks5.MethodNoAuth)}, greetingReply)

	// CONNECT request for example.com:443.
	dest, err := proxyio.NewDomainDestination("example.com", 443)
	require.NoError(t, err)
	req := []byte{0x05, byte(socks5.CmdConnect), 0x00}
	req, err = dest.AppendSOCKS5(req)
	require.NoError(t, err)
	_, err = client.Write(req)
	require.NoError(t, err)

	select {
	case got := <-dialed:
		require.True(t, got.IsDomain())
	case <-time.After(time.Second):
		t.Fatal("dialer was never invoked")
	}

	var replyHead [3]byte
	_, err = io.ReadFull(client, replyHead[:])
	require.NoError(t, err)
	require.Equal(t, byte(0x05), replyHead[0])
	require.Equal(t, socks5.RepSucceeded, replyHead[1])
	_, err = proxyio.ReadSOCKS5Destination(client)
	require.NoError(t, err)

	_, err = egressClient.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(client, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))

	client.Close()
	egressClient.Close()
}

func TestSOCKS5HandlerRepliesErrorOnDialFailure(t *testing.T) {
	client, server := proxyio.Pipe()

	dialer := proxyio.DialerFunc(func(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
		return nil, proxyerr.New(proxyerr.KindHostUnreachable, "no route")
	})

	handler := &SOCKS5Handler{Server: &socks5.Server{}, Dialer: dialer}
	go handler.Serve(context.Background(), server)

	_, err := client.Write([]byte{0x05, 0x01, byte(socks5.MethodNoAuth)})
	require.NoError(t, err)
	var greetingReply [2]byte
	_, err = io.ReadFull(client, greetingReply[:])
	require.NoError(t, err)

	dest, err := proxyio.NewDomainDestination("blocked.test", 80)
	require.NoError(t, err)
	req := []byte{0x05, byte(socks5.CmdConnect), 0x00}
	req, err = dest.AppendSOCKS5(req)
	require.NoError(t, err)
	_, err = client.Write(req)
	require.NoError(t, err)

	var replyHead [2]byte
	_, err = io.ReadFull(client, replyHead[:])
	require.NoError(t, err)
	require.Equal(t, socks5.RepHostUnreachable, replyHead[1])
}
