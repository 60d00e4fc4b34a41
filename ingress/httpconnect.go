package ingress

import (
	"bufio"
	"context"
	"log"

	"github.com/netroute/gatekeeper/httpconnect"
	"github.com/netroute/gatekeeper/proxyio"
)

// HTTPConnectHandler drives the ingress HTTP-CONNECT handshake on each
// accepted connection, dials the parsed destination through Dialer, and
// relays bytes until either side closes.
type HTTPConnectHandler struct {
	Server *httpconnect.Server
	Dialer proxyio.Dialer
}

// Serve implements [Handler].
func (h *HTTPConnectHandler) Serve(ctx context.Context, conn proxyio.StreamConn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	var dest proxyio.Destination
	err := withDeadline(conn, NegotiationTimeout, func() error {
		var negotiateErr error
		dest, negotiateErr = h.Server.Negotiate(reader, conn)
		return negotiateErr
	})
	if err != nil {
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	egress, err := h.Dialer.Connect(dialCtx, dest)
	cancel()
	if err != nil {
		httpconnect.RespondUnavailable(conn)
		return
	}
	defer egress.Close()

	if err := httpconnect.RespondOK(conn); err != nil {
		return
	}

	if err := relayWithIdleTimeout(conn, egress, IdleRelayTimeout); err != nil {
		log.Printf("ingress: http-connect relay ended: %v", err)
	}
}
