package ingress

import (
	"context"
	"log"

	"github.com/netroute/gatekeeper/proxyio"
	"github.com/netroute/gatekeeper/socks5"
)

// SOCKS5Handler drives the ingress SOCKS5 handshake on each accepted
// connection, dials the parsed destination through Dialer, and relays
// bytes until either side closes.
type SOCKS5Handler struct {
	Server *socks5.Server
	Dialer proxyio.Dialer
}

// Serve implements [Handler].
func (h *SOCKS5Handler) Serve(ctx context.Context, conn proxyio.StreamConn) {
	defer conn.Close()

	var dest proxyio.Destination
	err := withDeadline(conn, NegotiationTimeout, func() error {
		var negotiateErr error
		dest, negotiateErr = h.Server.Negotiate(conn)
		return negotiateErr
	})
	if err != nil {
		return
	}

	dialCtx, cancel := context.WithTimeout(ctx, DialTimeout)
	egress, err := h.Dialer.Connect(dialCtx, dest)
	cancel()
	if err != nil {
		socks5.WriteDstReply(conn, socks5.ReplyForError(err), proxyio.DefaultDestination())
		return
	}
	defer egress.Close()

	if err := socks5.WriteDstReply(conn, socks5.RepSucceeded, destinationFromAddr(egress.LocalAddr())); err != nil {
		return
	}

	if err := relayWithIdleTimeout(conn, egress, IdleRelayTimeout); err != nil {
		log.Printf("ingress: socks5 relay ended: %v", err)
	}
}
