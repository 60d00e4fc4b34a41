// Package proxyio holds the primitives shared by every ingress and egress
// component of the proxy pipeline: the [Destination] value, the [StreamConn]
// byte-stream contract, the fixed-length-prefixed wire codecs used by SOCKS5
// negotiation, and the bidirectional relay that pumps bytes once a tunnel is
// established. It is grounded on the teacher SDK's transport package, with
// the generic Conn-parameterized Dialer/Endpoint interfaces collapsed to the
// single concrete StreamConn shape this proxy actually needs.
package proxyio

import (
	"fmt"
	"net"
	"strconv"

	"golang.org/x/net/idna"
)

// Destination is a tagged value identifying a proxy target: either a
// resolved IP socket, or a domain name paired with a port whose resolution
// may be deferred to the egress hop.
type Destination struct {
	ip     net.IP // nil when the destination is domain-form
	domain string // empty when the destination is socket-form
	port   uint16
}

// DefaultDestination is the zero-value destination, 0.0.0.0:0.
func DefaultDestination() Destination {
	return Destination{ip: net.IPv4zero, port: 0}
}

// NewSocketDestination builds a Destination from a resolved IP and port.
func NewSocketDestination(ip net.IP, port uint16) Destination {
	return Destination{ip: ip, port: port}
}

// NewDomainDestination builds a Destination from a domain name and port. The
// domain is validated as non-empty ASCII of at most 255 octets, per the
// SOCKS5 wire constraint that also bounds every textual config field.
func NewDomainDestination(domain string, port uint16) (Destination, error) {
	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		// Not every domain used by a rule or a client request is a
		// registrable DNS name (e.g. "localhost"); fall back to the raw
		// value and only enforce the octet-length/ASCII wire constraint.
		ascii = domain
	}
	if len(ascii) == 0 {
		return Destination{}, fmt.Errorf("proxyio: empty domain")
	}
	if len(ascii) > 255 {
		return Destination{}, fmt.Errorf("proxyio: domain %q exceeds 255 octets", domain)
	}
	for i := 0; i < len(ascii); i++ {
		if ascii[i] > 0x7f {
			return Destination{}, fmt.Errorf("proxyio: domain %q is not ASCII", domain)
		}
	}
	return Destination{domain: ascii, port: port}, nil
}

// IsDomain reports whether the destination is in domain+port form.
func (d Destination) IsDomain() bool { return d.domain != "" }

// Domain returns the domain name, or "" if the destination is socket-form.
func (d Destination) Domain() string { return d.domain }

// IP returns the IP address, or nil if the destination is domain-form.
func (d Destination) IP() net.IP { return d.ip }

// Port returns the destination's port.
func (d Destination) Port() uint16 { return d.port }

// String renders the destination as "<ip>:<port>" or "<domain>:<port>",
// which also serves as the HTTP Host-header authority.
func (d Destination) String() string {
	port := strconv.Itoa(int(d.port))
	if d.IsDomain() {
		return net.JoinHostPort(d.domain, port)
	}
	ip := d.ip
	if ip == nil {
		ip = net.IPv4zero
	}
	return net.JoinHostPort(ip.String(), port)
}

// HostHeader returns the authority to use in an HTTP Host header or a
// CONNECT request line; identical to String for this destination's purposes.
func (d Destination) HostHeader() string { return d.String() }

// Equal reports whether two destinations are the same tagged value.
func (d Destination) Equal(other Destination) bool {
	if d.port != other.port {
		return false
	}
	if d.IsDomain() != other.IsDomain() {
		return false
	}
	if d.IsDomain() {
		return d.domain == other.domain
	}
	return d.ip.Equal(other.ip)
}

// ParseHostPort builds a Destination from a "host:port" string, using the IP
// socket form when host parses as an IP address and the domain form
// otherwise.
func ParseHostPort(hostport string) (Destination, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return Destination{}, fmt.Errorf("proxyio: invalid host:port %q: %w", hostport, err)
	}
	portNum, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Destination{}, fmt.Errorf("proxyio: invalid port %q: %w", portStr, err)
	}
	if ip := net.ParseIP(host); ip != nil {
		return NewSocketDestination(ip, uint16(portNum)), nil
	}
	return NewDomainDestination(host, uint16(portNum))
}
