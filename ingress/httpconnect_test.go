package ingress

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/httpconnect"
	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

func TestHTTPConnectHandlerDialsAndRelays(t *testing.T) {
	client, server := proxyio.Pipe()
	egressClient, egressServer := proxyio.Pipe()

	dialed := make(chan proxyio.Destination, 1)
	dialer := proxyio.DialerFunc(func(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
		dialed <- dest
		return egressServer, nil
	})

	handler := &HTTPConnectHandler{Server: &httpconnect.Server{}, Dialer: dialer}
	go handler.Serve(context.Background(), server)

	_, err := client.Write([]byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n"))
	require.NoError(t, err)

	select {
	case got := <-dialed:
		require.True(t, got.IsDomain())
	case <-time.After(time.Second):
		t.Fatal("dialer was never invoked")
	}

	reader := bufio.NewReader(client)
	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Contains(t, status, "200")
	blank, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "\r\n", blank)

	_, err = egressClient.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(reader, buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))

	client.Close()
	egressClient.Close()
}

func TestHTTPConnectHandlerRespondsUnavailableOnDialFailure(t *testing.T) {
	client, server := proxyio.Pipe()

	dialer := proxyio.DialerFunc(func(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
		return nil, proxyerr.New(proxyerr.KindHostUnreachable, "no route")
	})

	handler := &HTTPConnectHandler{Server: &httpconnect.Server{}, Dialer: dialer}
	go handler.Serve(context.Background(), server)

	_, err := client.Write([]byte("CONNECT blocked.test:80 HTTP/1.1\r\nHost: blocked.test:80\r\n\r\n"))
	require.NoError(t, err)

	reader := bufio.NewReader(client)
	status, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.Contains(status, "503"))
}
