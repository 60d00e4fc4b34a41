package socks5

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/proxyerr"
)

func TestReplyForErrorMapsKnownKinds(t *testing.T) {
	cases := []struct {
		kind proxyerr.Kind
		rep  byte
	}{
		{proxyerr.KindConnectionRefused, RepConnectionRefused},
		{proxyerr.KindNetworkUnreachable, RepNetworkUnreachable},
		{proxyerr.KindHostUnreachable, RepHostUnreachable},
		{proxyerr.KindCommandNotSupported, RepCommandNotSupported},
		{proxyerr.KindTtlExpired, RepTTLExpired},
		{proxyerr.KindInvalidDstAddress, RepAddrTypeNotSupported},
		{proxyerr.KindConnectionNotAllowedByRuleset, RepGeneralServerFailure},
	}
	for _, c := range cases {
		err := proxyerr.New(c.kind, "")
		require.Equal(t, c.rep, ReplyForError(err), c.kind.String())
	}
}

func TestReplyForErrorFallsBackToGeneralFailure(t *testing.T) {
	require.Equal(t, byte(RepGeneralServerFailure), ReplyForError(errors.New("plain")))
	require.Equal(t, byte(RepGeneralServerFailure), ReplyForError(proxyerr.New(proxyerr.KindIO, "")))
}
