// Package policy composes the rule engine with a direct and a proxy dialer
// into a single [proxyio.Dialer], picking between them per connection.
package policy

import (
	"context"

	"github.com/netroute/gatekeeper/proxyerr"
	"github.com/netroute/gatekeeper/proxyio"
	"github.com/netroute/gatekeeper/rules"
)

// Dialer composes a direct dialer, a proxy dialer, and a rule set into the
// routing decision described in the design's policy dialer component.
type Dialer struct {
	Direct proxyio.Dialer
	Proxy  proxyio.Dialer
	Rules  rules.RuleSet

	// ForceProxy, when set, routes every connection through Proxy
	// regardless of the rule set, with remote DNS resolution requested.
	ForceProxy bool
	// DefaultToProxy controls how a Default decision (no rule matched, or
	// an explicit "default" rule) is dispatched: true sends it to Proxy,
	// false to Direct.
	DefaultToProxy bool
}

var _ proxyio.Dialer = (*Dialer)(nil)

// Connect implements [proxyio.Dialer]: it classifies dest with the rule
// set (unless ForceProxy overrides that), then dispatches to the direct or
// proxy dialer accordingly. A Deny decision fails immediately with
// HostUnreachable without attempting any egress connection.
func (d *Dialer) Connect(ctx context.Context, dest proxyio.Destination) (proxyio.StreamConn, error) {
	decision := d.decide(dest)

	switch {
	case decision.IsDeny():
		return nil, proxyerr.New(proxyerr.KindHostUnreachable, "denied by ruleset")
	case decision.IsDirect():
		return d.Direct.Connect(ctx, dest)
	case decision.IsProxy():
		return d.Proxy.Connect(ctx, dest)
	default: // Default
		if d.DefaultToProxy {
			return d.Proxy.Connect(ctx, dest)
		}
		return d.Direct.Connect(ctx, dest)
	}
}

func (d *Dialer) decide(dest proxyio.Destination) rules.Decision {
	if d.ForceProxy {
		return rules.DecisionProxy(true)
	}
	return d.Rules.Enforce(dest)
}
