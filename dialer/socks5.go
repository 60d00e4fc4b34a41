package dialer

import (
	"github.com/netroute/gatekeeper/socks5"
)

// SOCKS5 wraps a socks5.Client so the policy dialer can treat every upstream
// variant as the same [proxyio.Dialer] contract.
type SOCKS5 = socks5.Client

// NewSOCKS5 builds a SOCKS5 upstream dialer.
func NewSOCKS5(proxyAddr string, cred *socks5.Credentials) *SOCKS5 {
	return socks5.NewClient(proxyAddr, cred)
}
