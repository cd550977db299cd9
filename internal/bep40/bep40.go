// Package bep40 ranks peer addresses with the canonical peer priority of BEP 40.
package bep40

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"net/netip"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

func checksum(b []byte) uint32 {
	return crc32.Checksum(b, castagnoli)
}

// ports are hashed as two big-endian uint16, smaller first.
func portBytes(a, b uint16) []byte {
	var ret [4]byte
	binary.BigEndian.PutUint16(ret[0:2], min(a, b))
	binary.BigEndian.PutUint16(ret[2:4], max(a, b))
	return ret[:]
}

// priorityBytes masks both addresses and concatenates them in ascending order.
//
// The first keep bytes are left as is and the rest are masked with 0x55. keep is minKeep for
// addresses in different networks, and one byte past the common prefix otherwise.
func priorityBytes(a, b []byte, minKeep int) []byte {
	common := 0
	for common < len(a) && a[common] == b[common] {
		common++
	}

	keep := minKeep
	if common >= minKeep {
		keep = min(common+1, len(a))
	}

	ma := bytes.Clone(a)
	mb := bytes.Clone(b)
	for i := keep; i < len(a); i++ {
		ma[i] &= 0x55
		mb[i] &= 0x55
	}

	if bytes.Compare(ma, mb) > 0 {
		ma, mb = mb, ma
	}

	return append(ma, mb...)
}

func PriorityBytes4(a, b netip.AddrPort) []byte {
	if a.Addr() == b.Addr() {
		return portBytes(a.Port(), b.Port())
	}

	if !a.Addr().Is4() || !b.Addr().Is4() {
		panic("not v4 addr")
	}

	ad, bd := a.Addr().As4(), b.Addr().As4()

	return priorityBytes(ad[:], bd[:], 2)
}

func PriorityBytes6(a, b netip.AddrPort) []byte {
	if a.Addr() == b.Addr() {
		return portBytes(a.Port(), b.Port())
	}

	if !a.Addr().Is6() || !b.Addr().Is6() {
		panic("not v6 addr")
	}

	ad, bd := a.Addr().As16(), b.Addr().As16()

	return priorityBytes(ad[:], bd[:], 6)
}

func Priority4(client, peer netip.AddrPort) uint32 {
	return checksum(PriorityBytes4(client, peer))
}

func Priority6(client, peer netip.AddrPort) uint32 {
	return checksum(PriorityBytes6(client, peer))
}

// SimplePriority hashes key with the address of peer. It's used when our own address is unknown.
func SimplePriority(key []byte, peer netip.AddrPort) uint32 {
	a := peer.Addr().Unmap()

	var bs = make([]byte, 0, len(key)+a.BitLen()/8+2)
	bs = append(bs, key...)
	bs = append(bs, a.AsSlice()...)
	bs = binary.BigEndian.AppendUint16(bs, peer.Port())

	return checksum(bs)
}

// Priority orders connection candidates.
// When our own public address is known and in the same family as peer the canonical
// priority is used, otherwise peers are ranked by SimplePriority.
func Priority(key []byte, self, peer netip.AddrPort) uint32 {
	a := self.Addr().Unmap()
	b := peer.Addr().Unmap()

	switch {
	case a.IsValid() && a.Is4() && b.Is4():
		return Priority4(netip.AddrPortFrom(a, self.Port()), netip.AddrPortFrom(b, peer.Port()))
	case a.IsValid() && a.Is6() && b.Is6():
		return Priority6(self, peer)
	}

	return SimplePriority(key, peer)
}
