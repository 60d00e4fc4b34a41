package proxyio

import (
	"context"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// StreamConn is the byte-stream contract every egress and ingress connection
// in the pipeline satisfies: a net.Conn that additionally supports closing
// only its read or write half, so a clean EOF on one side of a relay can
// shut down the matching half of the other side without severing the whole
// socket. Direct TCP connections, TLS-wrapped connections, and
// tunnel-pipe connections (SOCKS5/HTTP-CONNECT client dialers) all
// implement it, and the policy dialer (package policy) returns this
// interface uniformly regardless of which variant produced it.
type StreamConn interface {
	net.Conn
	// CloseRead closes the read end of the connection. No more reads
	// should happen afterwards.
	CloseRead() error
	// CloseWrite closes the write end of the connection. An EOF or FIN
	// signal may be sent to the connection's peer.
	CloseWrite() error
}

// TCPDialer is a Dialer (see package dialer) building block that opens a
// plain TCP connection to the host:port given on each call, using the
// standard net.Dialer.
type TCPDialer struct {
	Dialer net.Dialer
}

// DialTCP dials addr ("host:port") and returns it as a StreamConn.
func (d *TCPDialer) DialTCP(ctx context.Context, addr string) (StreamConn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// PipeConn is an in-memory StreamConn backed by an [io.Pipe] pair, used by
// tests to exercise ingress/egress state machines without real sockets.
type PipeConn struct {
	Reader     *io.PipeReader
	Writer     *io.PipeWriter
	localAddr  net.Addr
	remoteAddr net.Addr
	timerMu    sync.Mutex
	readTimer  *time.Timer
	writeTimer *time.Timer
}

var _ StreamConn = (*PipeConn)(nil)

// Pipe returns a pair of connected PipeConns, analogous to net.Pipe but
// satisfying StreamConn's half-close contract.
func Pipe() (*PipeConn, *PipeConn) {
	r1, w1 := io.Pipe()
	r2, w2 := io.Pipe()
	addrA := pipeAddr("a")
	addrB := pipeAddr("b")
	a := &PipeConn{Reader: r1, Writer: w2, localAddr: addrA, remoteAddr: addrB}
	b := &PipeConn{Reader: r2, Writer: w1, localAddr: addrB, remoteAddr: addrA}
	return a, b
}

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

func (c *PipeConn) LocalAddr() net.Addr  { return c.localAddr }
func (c *PipeConn) RemoteAddr() net.Addr { return c.remoteAddr }

func (c *PipeConn) Read(b []byte) (int, error) {
	n, err := c.Reader.Read(b)
	if err == io.ErrClosedPipe {
		err = net.ErrClosed
	}
	return n, err
}

func (c *PipeConn) CloseRead() error {
	return c.Reader.Close()
}

func (c *PipeConn) Write(b []byte) (int, error) {
	n, err := c.Writer.Write(b)
	if err == io.ErrClosedPipe {
		err = net.ErrClosed
	}
	return n, err
}

func (c *PipeConn) CloseWrite() error {
	return c.Writer.Close()
}

func (c *PipeConn) Close() error {
	c.Reader.Close()
	c.Writer.Close()
	return nil
}

func (c *PipeConn) SetReadDeadline(t time.Time) error {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.readTimer != nil {
		if !c.readTimer.Stop() {
			<-c.readTimer.C
		}
	}
	c.readTimer = time.AfterFunc(time.Until(t), func() { c.Reader.CloseWithError(os.ErrDeadlineExceeded) })
	return nil
}

func (c *PipeConn) SetWriteDeadline(t time.Time) error {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.writeTimer != nil {
		if !c.writeTimer.Stop() {
			<-c.writeTimer.C
		}
	}
	c.writeTimer = time.AfterFunc(time.Until(t), func() { c.Writer.CloseWithError(os.ErrDeadlineExceeded) })
	return nil
}

func (c *PipeConn) SetDeadline(t time.Time) error {
	c.SetReadDeadline(t)
	c.SetWriteDeadline(t)
	return nil
}
