package model

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/apparentlymart/go-cidr/cidr"
)

// ErrNetworkFull is returned when a network has no assignable offset left.
var ErrNetworkFull = errors.New("network is full")

// SmallestFreeOffset returns the smallest positive host offset inside a
// prefix of the given length that does not appear in used. Offset 0 is the
// network base and the highest offset is the broadcast address; neither is
// ever returned.
func SmallestFreeOffset(prefixLen int, used []uint32) (uint32, error) {
	if prefixLen < 0 || prefixLen > 30 {
		return 0, fmt.Errorf("prefix length %d out of range", prefixLen)
	}

	broadcast := uint32(1)<<(32-prefixLen) - 1
	taken := make(map[uint32]struct{}, len(used))
	for _, o := range used {
		taken[o] = struct{}{}
	}

	for o := uint32(1); o < broadcast; o++ {
		if _, ok := taken[o]; !ok {
			return o, nil
		}
	}

	return 0, ErrNetworkFull
}

// HostAddress computes the address at the given offset from the network base.
func HostAddress(prefix netip.Prefix, offset uint32) (netip.Addr, error) {
	_, ipnet, err := net.ParseCIDR(prefix.String())
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parsing cidr %s: %w", prefix, err)
	}

	ip, err := cidr.Host(ipnet, int(offset))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("computing host %d in %s: %w", offset, prefix, err)
	}

	addr, ok := netip.AddrFromSlice(ip.To4())
	if !ok {
		return netip.Addr{}, fmt.Errorf("host %d in %s is not an IPv4 address", offset, prefix)
	}

	return addr, nil
}
