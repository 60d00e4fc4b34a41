package socks5

import (
	"io"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

// Server drives the ingress SOCKS5 handshake described in RFC 1928/1929:
// method negotiation, optional Basic auth, then a CONNECT request. Only the
// CONNECT command is served; BIND and UDP ASSOCIATE are refused per the
// design's non-goals.
type Server struct {
	// Credentials, if non-nil, requires Basic auth and holds the single
	// accepted username/password pair. Nil means NoAuth only.
	Credentials *Credentials
}

// Negotiate runs the greeting, optional auth, and request phases of the
// SOCKS5 server state machine on conn, returning the parsed destination the
// caller should dial. On any wire or policy error, Negotiate has already
// written the appropriate reply (or none, if the connection must simply be
// dropped) and the caller should close conn without further negotiation.
func (s *Server) Negotiate(conn io.ReadWriter) (proxyio.Destination, error) {
	methods, err := readGreeting(conn)
	if err != nil {
		return proxyio.Destination{}, err
	}

	method := byte(MethodNoAuth)
	if s.Credentials != nil {
		method = MethodNoAcceptable
		for _, m := range methods {
			if m == MethodUserPassAuth {
				method = MethodUserPassAuth
				break
			}
		}
	}
	if len(methods) == 0 {
		method = MethodNoAcceptable
	}

	if _, err := conn.Write([]byte{0x05, method}); err != nil {
		return proxyio.Destination{}, err
	}
	if method == MethodNoAcceptable {
		return proxyio.Destination{}, proxyerr.New(proxyerr.KindNoAcceptableMethods, "")
	}

	if method == MethodUserPassAuth {
		if err := s.authenticate(conn); err != nil {
			return proxyio.Destination{}, err
		}
	}

	return s.readRequest(conn)
}

func readGreeting(r io.Reader) ([]byte, error) {
	var head [2]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, err
	}
	if head[0] != 0x05 {
		return nil, proxyerr.New(proxyerr.KindInvalidReplyVersion, "")
	}
	n := int(head[1])
	methods := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, methods); err != nil {
			return nil, err
		}
	}
	return methods, nil
}

func (s *Server) authenticate(conn io.ReadWriter) error {
	var ver [1]byte
	if _, err := io.ReadFull(conn, ver[:]); err != nil {
		return err
	}
	if ver[0] != 0x01 {
		return proxyerr.New(proxyerr.KindInvalidAuthValues, "")
	}
	username, err := proxyio.ReadOctetString(conn)
	if err != nil {
		return err
	}
	password, err := proxyio.ReadOctetString(conn)
	if err != nil {
		return err
	}

	ok := string(username) == s.Credentials.Username && string(password) == s.Credentials.Password
	status := byte(AuthFailure)
	if ok {
		status = AuthSuccess
	}
	if _, err := conn.Write([]byte{0x01, status}); err != nil {
		return err
	}
	if !ok {
		return proxyerr.WithCode(proxyerr.KindPasswordAuthFailure, status, "")
	}
	return nil
}

func (s *Server) readRequest(conn io.ReadWriter) (proxyio.Destination, error) {
	var head [3]byte
	if _, err := io.ReadFull(conn, head[:]); err != nil {
		return proxyio.Destination{}, err
	}
	if head[0] != 0x05 {
		return proxyio.Destination{}, proxyerr.New(proxyerr.KindInvalidReplyVersion, "")
	}
	cmd := head[1]

	dest, err := proxyio.ReadSOCKS5Destination(conn)
	if err != nil {
		return proxyio.Destination{}, err
	}

	if cmd != CmdConnect {
		WriteDstReply(conn, RepCommandNotSupported, proxyio.DefaultDestination())
		return proxyio.Destination{}, proxyerr.New(proxyerr.KindCommandNotSupported, "")
	}
	return dest, nil
}

// WriteDstReply writes a SOCKS5 DstReply (VER REP RSV ATYP ADDR PORT) to w,
// using bound as the reply's bound address. Failures to write are returned
// so the caller can decide whether to also tear down an already-open egress
// stream.
func WriteDstReply(w io.Writer, rep byte, bound proxyio.Destination) error {
	buf := []byte{0x05, rep, 0x00}
	buf, err := bound.AppendSOCKS5(buf)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}
