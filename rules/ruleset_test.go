package rules

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) Rule {
	t.Helper()
	rule, err := Parse(line)
	require.NoError(t, err)
	return rule
}

func TestRuleSetEnforceReturnsFirstMatch(t *testing.T) {
	rs := RuleSet{
		mustParse(t, "DOMAIN-SUFFIX,example.com,proxy"),
		mustParse(t, "DOMAIN,a.example.com,direct"),
	}
	dest := domainDest(t, "a.example.com", 443)
	require.True(t, rs.Enforce(dest).IsProxy())
}

func TestRuleSetEnforceDefaultsWhenNoMatch(t *testing.T) {
	rs := RuleSet{mustParse(t, "DOMAIN,example.com,direct")}
	dest := domainDest(t, "other.test", 443)
	require.True(t, rs.Enforce(dest).IsDefault())
}

func TestRuleSetEnforceDeny(t *testing.T) {
	rs := RuleSet{mustParse(t, "DOMAIN,blocked.test,deny")}
	dest := domainDest(t, "blocked.test", 80)
	require.True(t, rs.Enforce(dest).IsDeny())
}
