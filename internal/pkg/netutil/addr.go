package netutil

import (
	"net"
	"net/netip"

	"github.com/samber/lo"
	"github.com/trim21/errgo"
)

var privatePrefixes = lo.Map([]string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"169.254.0.0/16",
	"100.64.0.0/10", // CGNAT
	"::1/128",
	"fe80::/10",
	"fc00::/7",
}, func(s string, _ int) netip.Prefix {
	return netip.MustParsePrefix(s)
})

// IsPublic reports whether a is a global unicast address outside of private, loopback and link-local ranges.
func IsPublic(a netip.Addr) bool {
	a = a.Unmap()
	if !a.IsValid() || !a.IsGlobalUnicast() || a.IsPrivate() {
		return false
	}

	for _, p := range privatePrefixes {
		if p.Contains(a) {
			return false
		}
	}

	return true
}

// PublicAddrs lists the public addresses assigned to local interfaces, ipv4 first.
func PublicAddrs() ([]netip.Addr, error) {
	ifces, err := net.Interfaces()
	if err != nil {
		return nil, errgo.Wrap(err, "failed to get network interfaces")
	}

	var v4, v6 []netip.Addr

	for _, i := range ifces {
		if i.Flags&net.FlagUp == 0 || i.Flags&(net.FlagLoopback|net.FlagPointToPoint) != 0 {
			continue
		}

		addrs, err := i.Addrs()
		if err != nil {
			return nil, errgo.Wrap(err, "failed to get address of net interface "+i.Name)
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			default:
				continue
			}

			a, ok := netip.AddrFromSlice(ip)
			if !ok || !IsPublic(a) {
				continue
			}

			a = a.Unmap()
			if a.Is4() {
				v4 = append(v4, a)
			} else {
				v6 = append(v6, a)
			}
		}
	}

	return append(v4, v6...), nil
}

// PublicAddrPort returns the first public local address with port, or the zero value if the host has none.
func PublicAddrPort(port uint16) netip.AddrPort {
	addrs, err := PublicAddrs()
	if err != nil || len(addrs) == 0 {
		return netip.AddrPort{}
	}

	return netip.AddrPortFrom(addrs[0], port)
}
