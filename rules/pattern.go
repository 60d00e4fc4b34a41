// Package rules implements the textual rule grammar and pattern-matching
// engine that classifies a [proxyio.Destination] into a routing [Decision].
// It is grounded on the reference proxy-rules crate's Pattern/Rule/Policy
// shapes, adapted from string-based matching (the crate matches against a
// formatted "host:port" string) to matching directly against the structured
// Destination the rest of this repo already carries end to end.
package rules

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/netroute/gatekeeper/proxyio"
)

// Pattern reports whether a destination is selected by a rule.
type Pattern interface {
	Match(dest proxyio.Destination) bool
	String() string
}

// DomainExact matches a domain-form destination whose name equals the
// pattern exactly.
type DomainExact string

func (p DomainExact) Match(dest proxyio.Destination) bool {
	return dest.IsDomain() && dest.Domain() == string(p)
}

func (p DomainExact) String() string { return fmt.Sprintf("DOMAIN,%s", string(p)) }

// DomainSuffix matches a domain-form destination whose name ends with the
// pattern. It deliberately has no dot-boundary check: the rule "example.com"
// also matches "badexample.com", matching the textual rule verbatim.
type DomainSuffix string

func (p DomainSuffix) Match(dest proxyio.Destination) bool {
	return dest.IsDomain() && strings.HasSuffix(dest.Domain(), string(p))
}

func (p DomainSuffix) String() string { return fmt.Sprintf("DOMAIN-SUFFIX,%s", string(p)) }

// DomainKeyword matches a domain-form destination whose name contains the
// pattern as a substring.
type DomainKeyword string

func (p DomainKeyword) Match(dest proxyio.Destination) bool {
	return dest.IsDomain() && strings.Contains(dest.Domain(), string(p))
}

func (p DomainKeyword) String() string { return fmt.Sprintf("DOMAIN-KEYWORD,%s", string(p)) }

// DomainRegex matches a domain-form destination whose name contains a match
// for the pattern anywhere in the string (unanchored, like regexp.MatchString).
type DomainRegex struct {
	re *regexp.Regexp
}

// NewDomainRegex compiles source into a DomainRegex pattern.
func NewDomainRegex(source string) (DomainRegex, error) {
	re, err := regexp.Compile(source)
	if err != nil {
		return DomainRegex{}, err
	}
	return DomainRegex{re: re}, nil
}

func (p DomainRegex) Match(dest proxyio.Destination) bool {
	return dest.IsDomain() && p.re.MatchString(dest.Domain())
}

func (p DomainRegex) String() string { return fmt.Sprintf("DOMAIN-REGEX,%s", p.re.String()) }

// IPExact matches a socket-form destination whose IP equals the pattern
// exactly; the IP version of the pattern and the destination must agree.
type IPExact struct {
	ip net.IP
}

// NewIPExact builds an IPExact pattern from a parsed address.
func NewIPExact(ip net.IP) IPExact { return IPExact{ip: ip} }

func (p IPExact) Match(dest proxyio.Destination) bool {
	if dest.IsDomain() || dest.IP() == nil {
		return false
	}
	if isIPv4(p.ip) != isIPv4(dest.IP()) {
		return false
	}
	return dest.IP().Equal(p.ip)
}

func (p IPExact) String() string {
	if isIPv4(p.ip) {
		return fmt.Sprintf("IPV4,%s", p.ip.String())
	}
	return fmt.Sprintf("IPV6,%s", p.ip.String())
}

// IPCidr matches a socket-form destination whose IP agrees with net in the
// top prefix bits, for IPs of the same version as net. A prefix at or beyond
// the address width (32 for v4, 128 for v6) is treated as "match all bytes"
// rather than rejected, preserving a documented quirk of the source this
// engine is modeled on: callers are responsible for validating prefix before
// constructing a rule if they want stricter behavior.
type IPCidr struct {
	net    net.IP
	prefix int
}

// NewIPCidr builds an IPCidr pattern from a network address and bit prefix.
func NewIPCidr(network net.IP, prefix int) IPCidr {
	return IPCidr{net: network, prefix: prefix}
}

func (p IPCidr) Match(dest proxyio.Destination) bool {
	if dest.IsDomain() || dest.IP() == nil {
		return false
	}
	if isIPv4(p.net) != isIPv4(dest.IP()) {
		return false
	}
	mask := subnetMask(p.prefix, addressWidth(p.net))
	netBytes := addressBytes(p.net)
	dstBytes := addressBytes(dest.IP())
	for i := range mask {
		if dstBytes[i]&mask[i] != netBytes[i]&mask[i] {
			return false
		}
	}
	return true
}

func (p IPCidr) String() string {
	if isIPv4(p.net) {
		return fmt.Sprintf("IP-CIDR,%s/%d", p.net.String(), p.prefix)
	}
	return fmt.Sprintf("IP-CIDR6,%s/%d", p.net.String(), p.prefix)
}

func isIPv4(ip net.IP) bool { return ip.To4() != nil }

func addressWidth(ip net.IP) int {
	if isIPv4(ip) {
		return 4
	}
	return 16
}

func addressBytes(ip net.IP) []byte {
	if isIPv4(ip) {
		return ip.To4()
	}
	return ip.To16()
}

// subnetMask builds a widthBytes-long mask with the top prefix bits set,
// clamping an out-of-range prefix to "all bits set" rather than rejecting
// it — see IPCidr's doc comment.
func subnetMask(prefix, widthBytes int) []byte {
	mask := make([]byte, widthBytes)
	if prefix < 0 {
		return mask
	}
	if prefix >= widthBytes*8 {
		for i := range mask {
			mask[i] = 0xff
		}
		return mask
	}
	fullBytes := prefix / 8
	remBits := prefix % 8
	for i := 0; i < fullBytes; i++ {
		mask[i] = 0xff
	}
	if remBits > 0 && fullBytes < widthBytes {
		mask[fullBytes] = byte(0xff << (8 - remBits))
	}
	return mask
}
