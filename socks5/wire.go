// Package socks5 implements the RFC 1928 / RFC 1929 wire-level state
// machines for both proxy roles: [Server] drives the ingress handshake
// (method negotiation, optional Basic auth, CONNECT request) before handing
// the parsed destination to a proxyio.Dialer; [Client] drives the same
// handshake against an upstream SOCKS5 proxy, as used by an egress dialer.
// RFC byte constants are reused from things-go/go-socks5's statute package
// rather than redefined, since the value space is identical on both roles.
package socks5

import (
	"fmt"

	"github.com/things-go/go-socks5/statute"

	"github.com/netroute/gatekeeper/proxyerr"
)

// Authentication methods, per RFC 1928 section 3.
const (
	MethodNoAuth       = statute.MethodNoAuth
	MethodUserPassAuth = statute.MethodUserPassAuth
	MethodNoAcceptable = statute.MethodNoAcceptable
)

// Commands, per RFC 1928 section 4.
const (
	CmdConnect      = statute.CommandConnect
	CmdBind         = statute.CommandBind
	CmdUDPAssociate = statute.CommandAssociate
)

// Reply codes (REP), per RFC 1928 section 6.
const (
	RepSucceeded            = statute.RepSuccess
	RepGeneralServerFailure = statute.RepServerFailure
	RepRuleFailure          = statute.RepRuleFailure
	RepNetworkUnreachable   = statute.RepNetworkUnreachable
	RepHostUnreachable      = statute.RepHostUnreachable
	RepConnectionRefused    = statute.RepConnectionRefused
	RepTTLExpired           = statute.RepTTLExpired
	RepCommandNotSupported  = statute.RepCommandNotSupported
	RepAddrTypeNotSupported = statute.RepAddrTypeNotSupported
)

// Basic-auth subnegotiation status, per RFC 1929 section 2. statute exposes
// these as AuthSuccess/AuthFailure; the source this pipeline was modelled on
// used 0x00/0x01 inconsistently across roles, so both the client and server
// state machines here are pinned to exactly these two constants.
const (
	AuthSuccess = statute.AuthSuccess
	AuthFailure = statute.AuthFailure
)

// ReplyForError maps a pipeline error to the REP byte an ingress SOCKS5
// server sends back to the client, per the ordered table in the design's
// ingress section: ConnectionRefused, NetworkUnreachable, HostUnreachable,
// CommandNotSupported, TtlExpired, InvalidDstAddress each get a dedicated
// code; everything else falls back to GeneralServerFailure.
func ReplyForError(err error) byte {
	kind, ok := proxyerr.KindOf(err)
	if !ok {
		return RepGeneralServerFailure
	}
	switch kind {
	case proxyerr.KindConnectionRefused:
		return RepConnectionRefused
	case proxyerr.KindNetworkUnreachable:
		return RepNetworkUnreachable
	case proxyerr.KindHostUnreachable:
		return RepHostUnreachable
	case proxyerr.KindCommandNotSupported:
		return RepCommandNotSupported
	case proxyerr.KindTtlExpired:
		return RepTTLExpired
	case proxyerr.KindInvalidDstAddress:
		return RepAddrTypeNotSupported
	default:
		return RepGeneralServerFailure
	}
}

// errForReply maps a REP byte read from an upstream SOCKS5 proxy to a
// [proxyerr.Error], for use by the client state machine in response to a
// non-success DstReply.
func errForReply(rep byte) error {
	switch rep {
	case RepConnectionRefused:
		return proxyerr.New(proxyerr.KindConnectionRefused, "")
	case RepNetworkUnreachable:
		return proxyerr.New(proxyerr.KindNetworkUnreachable, "")
	case RepHostUnreachable:
		return proxyerr.New(proxyerr.KindHostUnreachable, "")
	case RepCommandNotSupported:
		return proxyerr.New(proxyerr.KindCommandNotSupported, "")
	case RepTTLExpired:
		return proxyerr.New(proxyerr.KindTtlExpired, "")
	case RepAddrTypeNotSupported:
		return proxyerr.New(proxyerr.KindAddressTypeNotSupported, "")
	case RepRuleFailure:
		return proxyerr.New(proxyerr.KindConnectionNotAllowedByRuleset, "")
	default:
		return proxyerr.WithCode(proxyerr.KindProxyServerUnreachable, rep, fmt.Sprintf("SOCKS5 reply code %d", rep))
	}
}
