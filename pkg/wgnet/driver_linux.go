package wgnet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
	"golang.zx2c4.com/wireguard/wgctrl"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

const wireguardLinkType = "wireguard"

type linuxDriver struct {
	handle *netlink.Handle
	wg     *wgctrl.Client
}

// NewDriver opens the rtnetlink socket and the WireGuard control client.
func NewDriver() (Driver, error) {
	handle, err := netlink.NewHandle()
	if err != nil {
		return nil, classify(fmt.Errorf("open rtnetlink: %w", err))
	}

	wg, err := wgctrl.New()
	if err != nil {
		handle.Close()
		return nil, classify(fmt.Errorf("open wireguard control: %w", err))
	}

	return &linuxDriver{handle: handle, wg: wg}, nil
}

func (d *linuxDriver) EnsureLink(name string) error {
	link, err := d.handle.LinkByName(name)
	if err == nil {
		if link.Type() != wireguardLinkType {
			return fmt.Errorf("%w: %s has type %s", ErrLinkTypeConflict, name, link.Type())
		}
		return nil
	}
	if !isLinkNotFound(err) {
		return classify(fmt.Errorf("query link %s: %w", name, err))
	}

	err = d.handle.LinkAdd(&netlink.GenericLink{
		LinkAttrs: netlink.LinkAttrs{Name: name},
		LinkType:  wireguardLinkType,
	})
	if err != nil {
		return classify(fmt.Errorf("add link %s: %w", name, err))
	}

	return nil
}

func (d *linuxDriver) Configure(name string, cfg wgtypes.Config) error {
	if err := d.wg.ConfigureDevice(name, cfg); err != nil {
		return classify(fmt.Errorf("configure device %s: %w", name, err))
	}

	return nil
}

func (d *linuxDriver) SetAddresses(name string, addrs []netip.Prefix) error {
	link, err := d.handle.LinkByName(name)
	if err != nil {
		return classify(fmt.Errorf("query link %s: %w", name, err))
	}

	current, err := d.handle.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return classify(fmt.Errorf("list addresses on %s: %w", name, err))
	}

	desired := make(map[string]*net.IPNet, len(addrs))
	for _, p := range addrs {
		ipnet := prefixToIPNet(p)
		desired[ipnet.String()] = ipnet
	}

	for _, addr := range current {
		key := addr.IPNet.String()
		if _, ok := desired[key]; ok {
			delete(desired, key)
			continue
		}
		if err := d.handle.AddrDel(link, &addr); err != nil {
			return classify(fmt.Errorf("remove address %s from %s: %w", key, name, err))
		}
	}

	for key, ipnet := range desired {
		if err := d.handle.AddrAdd(link, &netlink.Addr{IPNet: ipnet}); err != nil {
			return classify(fmt.Errorf("add address %s to %s: %w", key, name, err))
		}
	}

	return nil
}

func (d *linuxDriver) SetUp(name string) error {
	link, err := d.handle.LinkByName(name)
	if err != nil {
		return classify(fmt.Errorf("query link %s: %w", name, err))
	}

	if err := d.handle.LinkSetUp(link); err != nil {
		return classify(fmt.Errorf("set link %s up: %w", name, err))
	}

	return nil
}

func (d *linuxDriver) DeleteLink(name string) error {
	link, err := d.handle.LinkByName(name)
	if isLinkNotFound(err) {
		return nil
	}
	if err != nil {
		return classify(fmt.Errorf("query link %s: %w", name, err))
	}

	if err := d.handle.LinkDel(link); err != nil {
		return classify(fmt.Errorf("delete link %s: %w", name, err))
	}

	return nil
}

func (d *linuxDriver) Close() error {
	d.handle.Close()
	return d.wg.Close()
}

func isLinkNotFound(err error) bool {
	var notFound netlink.LinkNotFoundError
	return errors.As(err, &notFound)
}

func classify(err error) error {
	if errors.Is(err, unix.EPERM) || errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrPermission, err)
	}

	return err
}

func prefixToIPNet(p netip.Prefix) *net.IPNet {
	addr := p.Addr().As4()
	return &net.IPNet{
		IP:   net.IP(addr[:]),
		Mask: net.CIDRMask(p.Bits(), 32),
	}
}
