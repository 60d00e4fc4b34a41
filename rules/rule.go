package rules

import (
	"fmt"

	"github.com/netroute/gatekeeper/proxyio"
)

// Decision is the routing verdict produced for a destination.
type Decision struct {
	kind      decisionKind
	RemoteDNS bool
}

type decisionKind int

const (
	decisionDefault decisionKind = iota
	decisionDirect
	decisionProxy
	decisionDeny
)

// DecisionDirect routes the connection directly to the origin.
func DecisionDirect() Decision { return Decision{kind: decisionDirect} }

// DecisionProxy routes the connection through the configured upstream proxy.
// remoteDNS requests that domain resolution be deferred to that proxy
// (force-remote-dns in the textual grammar).
func DecisionProxy(remoteDNS bool) Decision {
	return Decision{kind: decisionProxy, RemoteDNS: remoteDNS}
}

// DecisionDefault defers to the caller's ambient policy.
func DecisionDefault() Decision { return Decision{kind: decisionDefault} }

// DecisionDeny refuses the connection outright.
func DecisionDeny() Decision { return Decision{kind: decisionDeny} }

// IsDefault reports whether d defers to the ambient policy.
func (d Decision) IsDefault() bool { return d.kind == decisionDefault }

// IsDirect reports whether d selects the direct dialer.
func (d Decision) IsDirect() bool { return d.kind == decisionDirect }

// IsProxy reports whether d selects the upstream proxy dialer.
func (d Decision) IsProxy() bool { return d.kind == decisionProxy }

// IsDeny reports whether d refuses the connection.
func (d Decision) IsDeny() bool { return d.kind == decisionDeny }

func (d Decision) String() string {
	switch d.kind {
	case decisionDirect:
		return "DIRECT"
	case decisionProxy:
		if d.RemoteDNS {
			return "PROXY,force-remote-dns"
		}
		return "PROXY"
	case decisionDeny:
		return "DENY"
	default:
		return "DEFAULT"
	}
}

// Rule pairs a [Pattern] with the [Decision] to return when it matches.
type Rule struct {
	Pattern  Pattern
	Decision Decision
}

// Enforce returns r.Decision if the pattern matches dest, or DecisionDefault
// otherwise.
func (r Rule) Enforce(dest proxyio.Destination) Decision {
	if r.Pattern.Match(dest) {
		return r.Decision
	}
	return DecisionDefault()
}

func (r Rule) String() string {
	return fmt.Sprintf("%s,%s", r.Pattern.String(), r.Decision.String())
}
