// Package wgnet drives local WireGuard devices over netlink: rtnetlink
// for link lifecycle and addressing, the generic-netlink WireGuard
// family for device and peer state.
package wgnet

import (
	"errors"
	"net/netip"

	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrPermission marks operations refused by the kernel; the daemon has
// to run privileged.
var ErrPermission = errors.New("operation not permitted")

// ErrLinkTypeConflict marks an existing link that carries the requested
// name but is not a WireGuard device. Reconciling over it would break
// whatever owns it.
var ErrLinkTypeConflict = errors.New("existing link is not a wireguard device")

// Driver reconciles one or more local WireGuard links toward desired
// state. Every call round-trips the netlink socket before returning.
type Driver interface {
	// EnsureLink creates the named WireGuard link if it does not
	// exist. A same-named link of another type is ErrLinkTypeConflict.
	EnsureLink(name string) error

	// Configure pushes device state. Callers set ReplacePeers so live
	// state converges to exactly cfg.
	Configure(name string, cfg wgtypes.Config) error

	// SetAddresses reconciles the link's IPv4 addresses to exactly the
	// given set.
	SetAddresses(name string, addrs []netip.Prefix) error

	SetUp(name string) error

	// DeleteLink is idempotent: a link that is already gone is success.
	DeleteLink(name string) error

	Close() error
}
