package bep40_test

import (
	"encoding/hex"
	"hash/crc32"
	"net/netip"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"tget/internal/bep40"
)

func TestPriority4(t *testing.T) {
	t.Parallel()

	table := crc32.MakeTable(crc32.Castagnoli)
	require.EqualValues(t, 0xec2d7224, crc32.Checksum(lo.Must(hex.DecodeString("624C14007BD50000")), table))
	require.EqualValues(t, 0x99568189, crc32.Checksum(lo.Must(hex.DecodeString("7BD5200A7BD520EA")), table))

	require.EqualValues(t, 0xec2d7224, bep40.Priority4(
		netip.MustParseAddrPort("123.213.32.10:0"),
		netip.MustParseAddrPort("98.76.54.32:0"),
	))

	require.EqualValues(t, 0xec2d7224, bep40.Priority4(
		netip.MustParseAddrPort("98.76.54.32:0"),
		netip.MustParseAddrPort("123.213.32.10:0"),
	))

	require.EqualValues(t, 0x99568189, bep40.Priority4(
		netip.MustParseAddrPort("123.213.32.10:0"),
		netip.MustParseAddrPort("123.213.32.234:0"),
	))

	require.EqualValues(t, 0x2b41d456, bep40.Priority4(
		netip.MustParseAddrPort("206.248.98.111:0"),
		netip.MustParseAddrPort("142.147.89.224:0"),
	))
}

func TestPriorityBytes4(t *testing.T) {
	t.Parallel()

	// same /16, last byte masked
	require.Equal(t,
		[]byte{10, 1, 2, 3 & 0x55, 10, 1, 7, 9 & 0x55},
		bep40.PriorityBytes4(netip.MustParseAddrPort("10.1.7.9:1"), netip.MustParseAddrPort("10.1.2.3:1")),
	)

	// same address, ports are used
	require.Equal(t,
		[]byte{0x1a, 0xe1, 0x1a, 0xe2},
		bep40.PriorityBytes4(netip.MustParseAddrPort("10.1.2.3:6882"), netip.MustParseAddrPort("10.1.2.3:6881")),
	)
}

func TestPriority6(t *testing.T) {
	t.Parallel()

	require.EqualValues(t, uint32(0xfbd26e29), bep40.Priority6(
		netip.MustParseAddrPort("[2015:7693:6cd9:a56a:e47f:7101:483e:800a]:0"),
		netip.MustParseAddrPort("[b1fa:9ff2:fbdc:23b9:3618:332c:216c:5b4a]:0"),
	))
}

func TestPriorityBytes6SameNetwork(t *testing.T) {
	t.Parallel()

	a := netip.MustParseAddrPort("[2001:db8:1:ffff::1]:0")
	b := netip.MustParseAddrPort("[2001:db8:1:ff00::2]:0")

	bs := bep40.PriorityBytes6(a, b)
	require.Len(t, bs, 32)

	// common prefix is 7 bytes, so 8 bytes are kept
	require.Equal(t, []byte{0x20, 0x01, 0x0d, 0xb8, 0x00, 0x01, 0xff, 0x00}, bs[:8])
	require.Equal(t, []byte{0x20, 0x01, 0x0d, 0xb8, 0x00, 0x01, 0xff, 0xff}, bs[16:24])
	require.Equal(t, byte(2&0x55), bs[15])
	require.Equal(t, byte(1&0x55), bs[31])
}

func TestPriority(t *testing.T) {
	t.Parallel()

	self := netip.MustParseAddrPort("123.213.32.10:0")
	peer := netip.MustParseAddrPort("98.76.54.32:0")

	require.Equal(t, bep40.Priority4(self, peer), bep40.Priority(nil, self, peer))

	key := []byte{1, 2, 3, 4}
	mapped := netip.MustParseAddrPort("[::ffff:98.76.54.32]:6881")
	require.Equal(t,
		bep40.SimplePriority(key, netip.MustParseAddrPort("98.76.54.32:6881")),
		bep40.Priority(key, netip.AddrPort{}, mapped),
	)

	v6 := netip.MustParseAddrPort("[2001:db8::1]:6881")
	require.Equal(t, bep40.SimplePriority(key, v6), bep40.Priority(key, self, v6))

	require.NotEqual(t,
		bep40.SimplePriority([]byte{1}, v6),
		bep40.SimplePriority([]byte{2}, v6),
	)
}
