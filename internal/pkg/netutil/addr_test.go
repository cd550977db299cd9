package netutil_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"tget/internal/pkg/netutil"
)

func TestIsPublic(t *testing.T) {
	t.Parallel()

	for addr, expected := range map[string]bool{
		"1.1.1.1":           true,
		"8.8.8.8":           true,
		"::ffff:8.8.4.4":    true,
		"2001:4860::8888":   true,
		"127.0.0.1":         false,
		"10.1.2.3":          false,
		"172.20.0.1":        false,
		"192.168.1.1":       false,
		"169.254.0.1":       false,
		"100.64.1.1":        false,
		"0.0.0.0":           false,
		"224.0.0.1":         false,
		"::1":               false,
		"fe80::1":           false,
		"fd00::1":           false,
		"::ffff:192.168.0.1": false,
	} {
		require.Equal(t, expected, netutil.IsPublic(netip.MustParseAddr(addr)), addr)
	}

	require.False(t, netutil.IsPublic(netip.Addr{}))
}

func TestPublicAddrs(t *testing.T) {
	t.Parallel()

	addrs, err := netutil.PublicAddrs()
	require.NoError(t, err)

	for _, a := range addrs {
		require.True(t, netutil.IsPublic(a))
	}
}
