package proxyio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/netroute/gatekeeper/proxyerr"
)

// SOCKS5 address type octets, per https://datatracker.ietf.org/doc/html/rfc1928#section-5.
const (
	ATYPIPv4   byte = 0x01
	ATYPDomain byte = 0x03
	ATYPIPv6   byte = 0x04
)

// AppendSOCKS5 appends the destination's SOCKS5 address triple (ATYP, ADDR,
// PORT) to buf and returns the extended slice, satisfying the invariant
// that a Destination round-trips through its SOCKS5 wire form.
func (d Destination) AppendSOCKS5(buf []byte) ([]byte, error) {
	if d.IsDomain() {
		if len(d.domain) > 255 {
			return nil, fmt.Errorf("proxyio: domain %q exceeds 255 octets", d.domain)
		}
		buf = append(buf, ATYPDomain, byte(len(d.domain)))
		buf = append(buf, d.domain...)
	} else {
		ip := d.ip
		if ip == nil {
			ip = net.IPv4zero
		}
		if ip4 := ip.To4(); ip4 != nil {
			buf = append(buf, ATYPIPv4)
			buf = append(buf, ip4...)
		} else {
			buf = append(buf, ATYPIPv6)
			buf = append(buf, ip.To16()...)
		}
	}
	return binary.BigEndian.AppendUint16(buf, d.port), nil
}

// ReadSOCKS5Destination reads a SOCKS5 address triple (ATYP, ADDR, PORT)
// from r and decodes it into a Destination. An ATYP outside the three known
// values returns an *UnknownAddressTypeError wrapped as KindUnknownAddressType;
// a zero-length domain returns KindInvalidDstAddress.
func ReadSOCKS5Destination(r io.Reader) (Destination, error) {
	var atyp [1]byte
	if _, err := io.ReadFull(r, atyp[:]); err != nil {
		return Destination{}, err
	}

	var dst Destination
	switch atyp[0] {
	case ATYPIPv4:
		addr := make(net.IP, net.IPv4len)
		if _, err := io.ReadFull(r, addr); err != nil {
			return Destination{}, err
		}
		dst = Destination{ip: addr}
	case ATYPIPv6:
		addr := make(net.IP, net.IPv6len)
		if _, err := io.ReadFull(r, addr); err != nil {
			return Destination{}, err
		}
		dst = Destination{ip: addr}
	case ATYPDomain:
		name, err := ReadUTF8String(r)
		if err != nil {
			var invalidUTF8 *InvalidUTF8Error
			if errors.As(err, &invalidUTF8) {
				return Destination{}, proxyerr.Wrap(proxyerr.KindInvalidDstAddress, "domain is not valid UTF-8", err)
			}
			return Destination{}, err
		}
		if len(name) == 0 {
			return Destination{}, proxyerr.New(proxyerr.KindInvalidDstAddress, "zero-length domain")
		}
		dst = Destination{domain: name}
	default:
		return Destination{}, proxyerr.Wrap(proxyerr.KindUnknownAddressType, "", &UnknownAddressTypeError{ATYP: atyp[0]})
	}

	var portBuf [2]byte
	if _, err := io.ReadFull(r, portBuf[:]); err != nil {
		return Destination{}, err
	}
	dst.port = binary.BigEndian.Uint16(portBuf[:])
	return dst, nil
}

// UnknownAddressTypeError is returned by ReadSOCKS5Destination when ATYP is
// not one of the three values the SOCKS5 RFC defines.
type UnknownAddressTypeError struct {
	ATYP byte
}

func (e *UnknownAddressTypeError) Error() string {
	return fmt.Sprintf("proxyio: unknown SOCKS5 address type 0x%02x", e.ATYP)
}
