package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/sirupsen/logrus"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/wirewarden/wirewarden/pkg/api"
	"github.com/wirewarden/wirewarden/pkg/client"
	"github.com/wirewarden/wirewarden/pkg/wgnet"
)

const DefaultInterval = 30 * time.Second

// Daemon pulls desired state from the planner for every registered
// gateway and drives the local WireGuard links toward it.
type Daemon struct {
	registry *Registry
	driver   wgnet.Driver
	interval time.Duration
	l        *logrus.Logger
}

func New(registry *Registry, driver wgnet.Driver, options ...func(*Daemon)) *Daemon {
	d := &Daemon{
		registry: registry,
		driver:   driver,
		interval: DefaultInterval,
		l:        logrus.New(),
	}

	for _, o := range options {
		o(d)
	}

	return d
}

// Run converges immediately and then on every tick until ctx is
// cancelled. Links the daemon created stay up across a shutdown; only
// eviction removes them.
func (d *Daemon) Run(ctx context.Context) error {
	d.l.Infof("converging every %s", d.interval)
	d.Converge(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.l.Info("shutting down")
			return nil
		case <-ticker.C:
			d.Converge(ctx)
		}
	}
}

// Converge runs one reconcile pass. Registrations reload from disk each
// pass, so edits made between ticks take effect on the next one.
func (d *Daemon) Converge(ctx context.Context) {
	regs, err := d.registry.Load()
	if err != nil {
		d.l.Errorf("load registrations: %s", err)
		return
	}

	for _, reg := range regs {
		if ctx.Err() != nil {
			return
		}
		d.convergeGateway(reg)
	}
}

func (d *Daemon) convergeGateway(reg Registration) {
	log := d.l.WithField("interface", reg.Interface)

	cfg, err := d.pull(reg)
	switch {
	case err == nil:
	case errors.Is(err, client.ErrorUnauthorized), errors.Is(err, client.ErrorNotFound):
		log.Warnf("planner no longer knows this gateway (%s), evicting", err)
		d.evict(reg, log)
		return
	default:
		log.Errorf("fetch config: %s", err)
		return
	}

	if err := d.apply(reg.Interface, cfg); err != nil {
		log.Errorf("apply config: %s", err)
		return
	}

	log.Debugf("converged with %d peers", len(cfg.Peers))
}

func (d *Daemon) pull(reg Registration) (api.DaemonConfig, error) {
	// Detached from the run context so a shutdown mid-request lets the
	// response land; the deadline still bounds the fetch to half a tick.
	ctx, cancel := context.WithTimeout(context.Background(), d.interval/2)
	defer cancel()

	c := client.New(reg.APIHost, reg.APIToken, client.WithLogger(d.l))

	return c.DaemonConfig(ctx)
}

// apply drives the link to cfg. Device state goes in before addresses:
// an addressed link without its private key blackholes traffic.
func (d *Daemon) apply(ifname string, cfg api.DaemonConfig) error {
	device, addr, err := plan(cfg)
	if err != nil {
		return err
	}

	if err := d.driver.EnsureLink(ifname); err != nil {
		return err
	}
	if err := d.driver.Configure(ifname, device); err != nil {
		return err
	}
	if err := d.driver.SetAddresses(ifname, []netip.Prefix{addr}); err != nil {
		return err
	}

	return d.driver.SetUp(ifname)
}

// evict tears down a gateway the planner rejected. The link goes first,
// best effort; the registration is dropped so later passes skip it.
func (d *Daemon) evict(reg Registration, log *logrus.Entry) {
	if err := d.driver.DeleteLink(reg.Interface); err != nil {
		log.Warnf("delete link: %s", err)
	}

	if err := d.registry.RemoveByToken(reg.APIToken); err != nil {
		log.Errorf("remove registration: %s", err)
		return
	}

	log.Info("registration evicted")
}

func plan(cfg api.DaemonConfig) (wgtypes.Config, netip.Prefix, error) {
	key, err := wgtypes.ParseKey(cfg.Interface.PrivateKey)
	if err != nil {
		return wgtypes.Config{}, netip.Prefix{}, fmt.Errorf("parse private key: %w", err)
	}

	addr, err := netip.ParseAddr(cfg.Interface.Address)
	if err != nil {
		return wgtypes.Config{}, netip.Prefix{}, fmt.Errorf("parse interface address: %w", err)
	}
	prefix := netip.PrefixFrom(addr, cfg.Interface.PrefixLen)
	if !prefix.IsValid() {
		return wgtypes.Config{}, netip.Prefix{}, fmt.Errorf("invalid prefix length %d", cfg.Interface.PrefixLen)
	}

	peers := make([]wgtypes.PeerConfig, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		peer, err := planPeer(p)
		if err != nil {
			return wgtypes.Config{}, netip.Prefix{}, err
		}
		peers = append(peers, peer)
	}

	listenPort := int(cfg.Interface.ListenPort)
	device := wgtypes.Config{
		PrivateKey:   &key,
		ListenPort:   &listenPort,
		ReplacePeers: true,
		Peers:        peers,
	}

	return device, prefix, nil
}

func planPeer(p api.PeerConfig) (wgtypes.PeerConfig, error) {
	public, err := wgtypes.ParseKey(p.PublicKey)
	if err != nil {
		return wgtypes.PeerConfig{}, fmt.Errorf("parse public key: %w", err)
	}

	peer := wgtypes.PeerConfig{
		PublicKey:         public,
		ReplaceAllowedIPs: true,
	}

	if p.PresharedKey != "" {
		psk, err := wgtypes.ParseKey(p.PresharedKey)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("parse preshared key of %s: %w", p.PublicKey, err)
		}
		peer.PresharedKey = &psk
	}

	if p.PersistentKeepalive > 0 {
		keepalive := time.Duration(p.PersistentKeepalive) * time.Second
		peer.PersistentKeepaliveInterval = &keepalive
	}

	for _, cidr := range p.AllowedIPs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return wgtypes.PeerConfig{}, fmt.Errorf("parse allowed ip %s: %w", cidr, err)
		}
		peer.AllowedIPs = append(peer.AllowedIPs, *ipnet)
	}

	return peer, nil
}
