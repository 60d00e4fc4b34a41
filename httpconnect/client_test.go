package httpconnect

import (
	"bufio"
	"context"
	"encoding/base64"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/proxyio"
)

func TestClientConnectSuccess(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var running sync.WaitGroup
	running.Add(2)

	go func() {
		defer running.Done()
		conn, err := listener.Accept()
		require.NoError(t, err)
		defer conn.Close()

		r := bufio.NewReader(conn)
		requestLine, err := r.ReadString('\n')
		require.NoError(t, err)
		require.Equal(t, "CONNECT example.com:443 HTTP/1.1\r\n", requestLine)

		var sawAuth bool
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			if line == "\r\n" {
				break
			}
			if strings.HasPrefix(line, "Proxy-Authorization:") {
				sawAuth = true
				creds := base64.StdEncoding.EncodeToString([]byte("user:pass"))
				require.Contains(t, line, creds)
			}
		}
		require.True(t, sawAuth)

		_, err = conn.Write([]byte("HTTP/1.1 200 OK\r\n\r\n"))
		require.NoError(t, err)

		buf := make([]byte, len("ping"))
		_, err = r.Read(buf)
		require.NoError(t, err)
		require.Equal(t, "ping", string(buf))
		_, err = conn.Write([]byte("pong"))
		require.NoError(t, err)
	}()

	go func() {
		defer running.Done()
		client := NewClient(listener.Addr().String(), "user", "pass")
		dest, err := proxyio.NewDomainDestination("example.com", 443)
		require.NoError(t, err)
		conn, err := client.Connect(context.Background(), dest)
		require.NoError(t, err)
		defer conn.Close()

		_, err = conn.Write([]byte("ping"))
		require.NoError(t, err)
		buf := make([]byte, len("pong"))
		_, err = conn.Read(buf)
		require.NoError(t, err)
		require.Equal(t, "pong", string(buf))
	}()

	running.Wait()
}

func TestClientConnectNonOKStatus(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	var running sync.WaitGroup
	running.Add(2)

	go func() {
		defer running.Done()
		conn, err := listener.Accept()
		require.NoError(t, err)
		defer conn.Close()
		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			require.NoError(t, err)
			if line == "\r\n" {
				break
			}
		}
		_, err = conn.Write([]byte("HTTP/1.1 503 Service Unavailable\r\nContent-Length: 2\r\n\r\nno"))
		require.NoError(t, err)
	}()

	go func() {
		defer running.Done()
		client := NewClient(listener.Addr().String(), "", "")
		dest, err := proxyio.NewDomainDestination("example.com", 443)
		require.NoError(t, err)
		_, err = client.Connect(context.Background(), dest)
		require.Error(t, err)
	}()

	running.Wait()
}

func TestNormalizeTargetDefaultsPorts(t *testing.T) {
	require.Equal(t, "example.com:80", normalizeTarget("http://example.com"))
	require.Equal(t, "example.com:443", normalizeTarget("https://example.com"))
	require.Equal(t, "example.com:443", normalizeTarget("example.com"))
	require.Equal(t, "example.com:8443", normalizeTarget("https://example.com:8443"))
}
