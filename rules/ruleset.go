package rules

import "github.com/netroute/gatekeeper/proxyio"

// RuleSet is an ordered list of rules, built once at startup and shared by
// immutable reference across every connection.
type RuleSet []Rule

// Enforce scans the rules in declaration order and returns the first
// non-default decision, or DecisionDefault if none match.
func (rs RuleSet) Enforce(dest proxyio.Destination) Decision {
	for _, r := range rs {
		if d := r.Enforce(dest); !d.IsDefault() {
			return d
		}
	}
	return DecisionDefault()
}
