package proxyio

import (
	"context"
	"net"
	"sync"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPDialerIPv4(t *testing.T) {
	requestText := []byte("Request")
	responseText := []byte("Response")

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.Nilf(t, err, "Failed to create TCP listener: %v", err)
	defer listener.Close()

	var running sync.WaitGroup
	running.Add(2)

	// Server
	go func() {
		defer running.Done()
		serverSide, err := listener.AcceptTCP()
		require.Nilf(t, err, "AcceptTCP failed: %v", err)
		defer serverSide.Close()

		err = iotest.TestReader(serverSide, requestText)
		assert.Nilf(t, err, "Request read failed: %v", err)

		_, err = serverSide.Write(responseText)
		assert.Nilf(t, err, "Write failed: %v", err)
		assert.Nilf(t, serverSide.CloseWrite(), "CloseWrite failed")
	}()

	// Client
	go func() {
		defer running.Done()
		dialer := &TCPDialer{}
		conn, err := dialer.DialTCP(context.Background(), listener.Addr().String())
		require.Nil(t, err, "DialTCP failed")
		require.Equal(t, listener.Addr().String(), conn.RemoteAddr().String())
		defer conn.Close()

		n, err := conn.Write(requestText)
		require.Nil(t, err)
		require.Equal(t, len(requestText), n)
		assert.Nil(t, conn.CloseWrite())

		err = iotest.TestReader(conn, responseText)
		require.Nilf(t, err, "Response read failed: %v", err)
	}()

	running.Wait()
}

func TestPipeConnTransfersData(t *testing.T) {
	a, b := Pipe()

	go func() {
		a.Write([]byte("hello"))
		a.CloseWrite()
	}()

	buf := make([]byte, 5)
	_, err := b.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func TestPipeConnCloseReadUnblocksWriter(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, b.CloseRead())

	_, err := a.Write([]byte("x"))
	require.Error(t, err)
}
