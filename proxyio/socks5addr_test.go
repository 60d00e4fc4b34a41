package proxyio

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/proxyerr"
)

func TestReadSOCKS5DestinationRoundTripsEachAddressType(t *testing.T) {
	domain, err := NewDomainDestination("example.com", 443)
	require.NoError(t, err)

	destinations := []Destination{
		NewSocketDestination(net.ParseIP("8.8.8.8"), 53),
		NewSocketDestination(net.ParseIP("2001:db8::1"), 443),
		domain,
	}
	for _, dest := range destinations {
		buf, err := dest.AppendSOCKS5(nil)
		require.NoError(t, err)
		got, err := ReadSOCKS5Destination(bytes.NewReader(buf))
		require.NoError(t, err)
		require.True(t, dest.Equal(got))
	}
}

func TestReadSOCKS5DestinationRejectsZeroLengthDomain(t *testing.T) {
	// ATYP=domain, LEN=0, followed by the port.
	buf := []byte{ATYPDomain, 0x00, 0x01, 0xbb}
	_, err := ReadSOCKS5Destination(bytes.NewReader(buf))
	require.Error(t, err)
	kind, ok := proxyerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, proxyerr.KindInvalidDstAddress, kind)
}

func TestReadSOCKS5DestinationRejectsUnknownATYP(t *testing.T) {
	buf := []byte{0x7f, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	_, err := ReadSOCKS5Destination(bytes.NewReader(buf))
	require.Error(t, err)
	kind, ok := proxyerr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, proxyerr.KindUnknownAddressType, kind)

	var unknownErr *UnknownAddressTypeError
	require.ErrorAs(t, err, &unknownErr)
	require.Equal(t, byte(0x7f), unknownErr.ATYP)
}
