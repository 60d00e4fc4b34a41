package dialer

import (
	"github.com/netroute/gatekeeper/httpconnect"
)

// HTTP wraps an httpconnect.Client as the HTTP-CONNECT upstream dialer
// variant.
type HTTP = httpconnect.Client

// NewHTTP builds an HTTP-CONNECT upstream dialer. Empty username/password
// means no Proxy-Authorization header is sent.
func NewHTTP(proxyAddr, username, password string) *HTTP {
	return httpconnect.NewClient(proxyAddr, username, password)
}
