package dialer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/netroute/gatekeeper/socks5"
)

func TestNewSOCKS5BuildsClient(t *testing.T) {
	cred, err := socks5.NewCredentials([]byte("u"), []byte("p"))
	require.NoError(t, err)
	d := NewSOCKS5("127.0.0.1:1080", cred)
	require.NotNil(t, d)
}

func TestNewHTTPBuildsClient(t *testing.T) {
	d := NewHTTP("127.0.0.1:8080", "user", "pass")
	require.NotNil(t, d)
}
