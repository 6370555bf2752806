// Package wgconf renders wg-quick configuration files and computes the
// AllowedIPs set advertised to clients.
package wgconf

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// DefaultRoute is the AllowedIPs entry for full internet forwarding.
var DefaultRoute = netip.MustParsePrefix("0.0.0.0/0")

type Interface struct {
	PrivateKey string
	Address    netip.Addr
	DNS        []string
}

type Peer struct {
	Name                string
	PublicKey           string
	PresharedKey        string
	Endpoint            string
	PersistentKeepalive uint16
	AllowedIPs          []netip.Prefix
}

// Config is one client's rendered view of its network. Render produces the
// same bytes for the same Config; peer order is the caller's.
type Config struct {
	Name      string
	Interface Interface
	Peers     []Peer
}

func (c Config) Render() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", c.Name)
	fmt.Fprintf(&b, "[Interface]\n")
	fmt.Fprintf(&b, "PrivateKey = %s\n", c.Interface.PrivateKey)
	fmt.Fprintf(&b, "Address = %s/32\n", c.Interface.Address)
	if len(c.Interface.DNS) > 0 {
		fmt.Fprintf(&b, "DNS = %s\n", strings.Join(c.Interface.DNS, ", "))
	}

	for _, peer := range c.Peers {
		fmt.Fprintf(&b, "\n# %s\n", peer.Name)
		fmt.Fprintf(&b, "[Peer]\n")
		fmt.Fprintf(&b, "PublicKey = %s\n", peer.PublicKey)
		if peer.PresharedKey != "" {
			fmt.Fprintf(&b, "PresharedKey = %s\n", peer.PresharedKey)
		}
		if peer.Endpoint != "" {
			fmt.Fprintf(&b, "Endpoint = %s\n", peer.Endpoint)
		}
		if peer.PersistentKeepalive > 0 {
			fmt.Fprintf(&b, "PersistentKeepalive = %d\n", peer.PersistentKeepalive)
		}
		fmt.Fprintf(&b, "AllowedIPs = %s\n", JoinPrefixes(peer.AllowedIPs))
	}

	return b.String()
}

// AllowedIPUnion merges the network prefix with a server's advertised
// routes: deduplicated, network first, routes in ascending (address, prefix)
// order behind it.
func AllowedIPUnion(network netip.Prefix, routes []netip.Prefix) []netip.Prefix {
	seen := map[netip.Prefix]struct{}{network: {}}
	var extra []netip.Prefix
	for _, route := range routes {
		if _, ok := seen[route]; ok {
			continue
		}

		seen[route] = struct{}{}
		extra = append(extra, route)
	}

	sort.Slice(extra, func(i, j int) bool {
		if c := extra[i].Addr().Compare(extra[j].Addr()); c != 0 {
			return c < 0
		}
		return extra[i].Bits() < extra[j].Bits()
	})

	return append([]netip.Prefix{network}, extra...)
}

func JoinPrefixes(prefixes []netip.Prefix) string {
	parts := make([]string, len(prefixes))
	for i, p := range prefixes {
		parts[i] = p.String()
	}

	return strings.Join(parts, ", ")
}
