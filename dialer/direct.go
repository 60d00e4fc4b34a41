// Package dialer implements the four egress tunnel variants the policy
// dialer composes: a direct TCP dialer with Happy-Eyeballs-style domain
// resolution, and SOCKS5/HTTP/HTTPS CONNECT tunnel dialers that each wrap
// the corresponding client state machine behind the same [proxyio.Dialer]
// contract.
package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
)

// resolutionDelay bounds how long the v6 lookup is awaited once the v4
// lookup has already returned addresses, per RFC 8305 section 8's Resolution
// Delay.
const resolutionDelay = 50 * time.Millisecond

// connectionAttemptDelay staggers successive dial attempts across the
// candidate address list, per RFC 8305 section 8's Connection Attempt Delay.
const connectionAttemptDelay = 250 * time.Millisecond

// Direct is a [proxyio.Dialer] that opens a TCP connection straight to the
// destination, resolving domain-form destinations with a Happy-Eyeballs v2
// style racer adapted from the teacher SDK's HappyEyeballsStreamDialer: IPv4
// and IPv6 lookups run concurrently, and candidate addresses are dialed with
// a staggered delay so a slow or black-holed address doesn't block a
// reachable one.
type Direct struct {
	tcp proxyio.TCPDialer
	// LookupIPv4 and LookupIPv6 override domain resolution for tests; nil
	// uses net.DefaultResolver.
	LookupIPv4 func(ctx context.Context, host string) ([]net.IP, error)
	LookupIPv6 func(ctx context.Context, host string) ([]net.IP, error)
}

var _ proxyio.Dialer = (*Direct)(nil)

// NewDirect builds a Direct dialer.
func NewDirect() *Direct { return &Direct{} }

// Connect implements [proxyio.Dialer].
func (d *Direct) Connect(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
	if !dest.IsDomain() {
		return d.tcp.DialTCP(ctx, dest.String())
	}
	return d.dialDomain(ctx, dest.Domain(), dest.Port())
}

func (d *Direct) lookupIPv4(ctx context.Context, host string) ([]netip.Addr, error) {
	lookup := d.LookupIPv4
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip4", host)
		}
	}
	ips, err := lookup(ctx, host)
	return toAddrs(ips, false), err
}

func (d *Direct) lookupIPv6(ctx context.Context, host string) ([]netip.Addr, error) {
	lookup := d.LookupIPv6
	if lookup == nil {
		lookup = func(ctx context.Context, host string) ([]net.IP, error) {
			return net.DefaultResolver.LookupIP(ctx, "ip6", host)
		}
	}
	ips, err := lookup(ctx, host)
	return toAddrs(ips, true), err
}

func toAddrs(ips []net.IP, v6 bool) []netip.Addr {
	out := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		if v6 {
			if b := ip.To16(); b != nil && ip.To4() == nil {
				out = append(out, netip.AddrFrom16([16]byte(b)))
			}
		} else if b := ip.To4(); b != nil {
			out = append(out, netip.AddrFrom4([4]byte(b)))
		}
	}
	return out
}

// dialDomain races concurrent lookups and staggered dials, returning the
// first successful connection and abandoning the rest.
func (d *Direct) dialDomain(ctx context.Context, host string, port uint16) (proxyio.StreamConn, error) {
	raceCtx, cancelRace := context.WithCancel(ctx)
	defer cancelRace()

	type lookupResult struct {
		addrs []netip.Addr
		err   error
	}
	v6Ch := make(chan lookupResult, 1)
	v4Ch := make(chan lookupResult, 1)
	go func() {
		addrs, err := d.lookupIPv6(raceCtx, host)
		v6Ch <- lookupResult{addrs, err}
	}()
	go func() {
		addrs, err := d.lookupIPv4(raceCtx, host)
		v4Ch <- lookupResult{addrs, err}
	}()

	type dialResult struct {
		conn proxyio.StreamConn
		err  error
	}
	dialCh := make(chan dialResult)

	var pending []netip.Addr
	var lookupErr, dialErr error
	var nextDialAt <-chan struct{} = closedChan()
	outstandingDials := 0
	v6Done, v4Done := false, false

	startDial := func(addr netip.Addr) {
		outstandingDials++
		waitCtx, cancelWait := context.WithTimeout(raceCtx, connectionAttemptDelay)
		nextDialAt = waitCtx.Done()
		go func() {
			defer cancelWait()
			conn, err := d.tcp.DialTCP(raceCtx, netip.AddrPortFrom(addr, port).String())
			select {
			case <-raceCtx.Done():
				if conn != nil {
					conn.Close()
				}
			case dialCh <- dialResult{conn, err}:
			}
		}()
	}

	for {
		var readyToDial <-chan struct{}
		if len(pending) > 0 {
			if !v6Done {
				delayCtx, cancel := context.WithTimeout(raceCtx, resolutionDelay)
				defer cancel()
				readyToDial = delayCtx.Done()
			} else {
				readyToDial = nextDialAt
			}
		}

		if v6Done && v4Done && len(pending) == 0 && outstandingDials == 0 {
			break
		}

		select {
		case res := <-v6Ch:
			v6Done = true
			if res.err != nil {
				lookupErr = errors.Join(lookupErr, res.err)
			} else {
				pending = mergeSorted(pending, res.addrs...)
			}
		case res := <-v4Ch:
			v4Done = true
			if res.err != nil {
				lookupErr = errors.Join(lookupErr, res.err)
			} else {
				pending = mergeSorted(pending, res.addrs...)
			}
		case <-readyToDial:
			addr := pending[0]
			pending = pending[1:]
			startDial(addr)
		case res := <-dialCh:
			outstandingDials--
			if res.err != nil {
				dialErr = errors.Join(dialErr, res.err)
				continue
			}
			return res.conn, nil
		case <-raceCtx.Done():
			return nil, raceCtx.Err()
		}
	}

	if dialErr != nil {
		return nil, proxyerr.Wrap(proxyerr.KindIO, fmt.Sprintf("dial %s", host), dialErr)
	}
	if lookupErr != nil {
		return nil, proxyerr.Wrap(proxyerr.KindInvalidDstAddress, "dns unresolved", lookupErr)
	}
	return nil, proxyerr.New(proxyerr.KindInvalidDstAddress, "dns unresolved")
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// mergeSorted appends newAddrs to existing and stably places IPv6 addresses
// ahead of IPv4, matching the teacher dialer's ordering preference without
// the RFC's full destination-address-selection algorithm.
func mergeSorted(existing []netip.Addr, newAddrs ...netip.Addr) []netip.Addr {
	existing = append(existing, newAddrs...)
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Is6() && existing[j].Is4()
	})
	return existing
}
