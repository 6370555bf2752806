package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"

	"github.com/wirewarden/wirewarden/pkg/api"
)

type fakeDriver struct {
	calls   []string
	configs map[string]wgtypes.Config
	addrs   map[string][]netip.Prefix
	deleted []string
	fail    error
}

func (f *fakeDriver) EnsureLink(name string) error {
	f.calls = append(f.calls, "ensure:"+name)
	return f.fail
}

func (f *fakeDriver) Configure(name string, cfg wgtypes.Config) error {
	f.calls = append(f.calls, "configure:"+name)
	if f.configs == nil {
		f.configs = map[string]wgtypes.Config{}
	}
	f.configs[name] = cfg
	return f.fail
}

func (f *fakeDriver) SetAddresses(name string, addrs []netip.Prefix) error {
	f.calls = append(f.calls, "addresses:"+name)
	if f.addrs == nil {
		f.addrs = map[string][]netip.Prefix{}
	}
	f.addrs[name] = addrs
	return f.fail
}

func (f *fakeDriver) SetUp(name string) error {
	f.calls = append(f.calls, "up:"+name)
	return f.fail
}

func (f *fakeDriver) DeleteLink(name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeDriver) Close() error {
	return nil
}

func mustKey(t *testing.T) wgtypes.Key {
	t.Helper()
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func servedConfig(t *testing.T) (api.DaemonConfig, wgtypes.Key, wgtypes.Key) {
	t.Helper()
	private := mustKey(t)
	peerKey := mustKey(t).PublicKey()
	psk := mustKey(t)

	cfg := api.DaemonConfig{
		Interface: api.InterfaceConfig{
			Address:    "10.0.0.1",
			PrefixLen:  24,
			ListenPort: 51820,
			PrivateKey: private.String(),
		},
		Peers: []api.PeerConfig{
			{
				PublicKey:           peerKey.String(),
				PresharedKey:        psk.String(),
				AllowedIPs:          []string{"10.0.0.2/32"},
				PersistentKeepalive: 25,
			},
		},
	}
	return cfg, private, psk
}

func plannerStub(t *testing.T, token string, cfg api.DaemonConfig) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(cfg)
	}))
}

func TestConvergeAppliesInOrder(t *testing.T) {
	cfg, private, psk := servedConfig(t)
	ts := plannerStub(t, "token-a", cfg)
	defer ts.Close()

	reg := testRegistry(t)
	if err := reg.Append(Registration{APIHost: ts.URL, APIToken: "token-a", Interface: "wg0"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	driver := &fakeDriver{}
	d := New(reg, driver, WithInterval(time.Second))
	d.Converge(context.Background())

	wantCalls := []string{"ensure:wg0", "configure:wg0", "addresses:wg0", "up:wg0"}
	if diff := cmp.Diff(wantCalls, driver.calls); diff != "" {
		t.Fatalf("call order mismatch (-want +got):\n%s", diff)
	}

	device := driver.configs["wg0"]
	if device.PrivateKey == nil || *device.PrivateKey != private {
		t.Error("device private key not installed")
	}
	if device.ListenPort == nil || *device.ListenPort != 51820 {
		t.Error("listen port not installed")
	}
	if !device.ReplacePeers {
		t.Error("expected ReplacePeers")
	}

	if len(device.Peers) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(device.Peers))
	}
	peer := device.Peers[0]
	if !peer.ReplaceAllowedIPs {
		t.Error("expected ReplaceAllowedIPs")
	}
	if peer.PresharedKey == nil || *peer.PresharedKey != psk {
		t.Error("preshared key not installed")
	}
	if peer.PersistentKeepaliveInterval == nil || *peer.PersistentKeepaliveInterval != 25*time.Second {
		t.Error("keepalive not installed")
	}
	if len(peer.AllowedIPs) != 1 || peer.AllowedIPs[0].String() != "10.0.0.2/32" {
		t.Errorf("unexpected allowed ips: %v", peer.AllowedIPs)
	}

	wantAddrs := []netip.Prefix{netip.MustParsePrefix("10.0.0.1/24")}
	if diff := cmp.Diff(wantAddrs, driver.addrs["wg0"], cmp.Comparer(func(a, b netip.Prefix) bool { return a == b })); diff != "" {
		t.Errorf("addresses mismatch (-want +got):\n%s", diff)
	}
}

func TestConvergeEvictsOnUnauthorized(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	reg := testRegistry(t)
	if err := reg.Append(Registration{APIHost: ts.URL, APIToken: "token-a", Interface: "wg0"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	driver := &fakeDriver{}
	d := New(reg, driver)
	d.Converge(context.Background())

	if len(driver.deleted) != 1 || driver.deleted[0] != "wg0" {
		t.Errorf("expected wg0 link deletion, got %v", driver.deleted)
	}
	regs, err := reg.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(regs) != 0 {
		t.Errorf("expected registration removed, got %+v", regs)
	}

	// The next pass has nothing left to do.
	driver.calls, driver.deleted = nil, nil
	d.Converge(context.Background())
	if len(driver.calls) != 0 || len(driver.deleted) != 0 {
		t.Errorf("expected idle pass, got calls=%v deleted=%v", driver.calls, driver.deleted)
	}
}

func TestConvergeEvictsOnNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	reg := testRegistry(t)
	if err := reg.Append(Registration{APIHost: ts.URL, APIToken: "token-a", Interface: "wg3"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	driver := &fakeDriver{}
	New(reg, driver).Converge(context.Background())

	if len(driver.deleted) != 1 || driver.deleted[0] != "wg3" {
		t.Errorf("expected wg3 link deletion, got %v", driver.deleted)
	}
	if regs, _ := reg.Load(); len(regs) != 0 {
		t.Errorf("expected registration removed, got %+v", regs)
	}
}

func TestConvergeSkipsOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	reg := testRegistry(t)
	if err := reg.Append(Registration{APIHost: ts.URL, APIToken: "token-a", Interface: "wg0"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	driver := &fakeDriver{}
	New(reg, driver).Converge(context.Background())

	if len(driver.calls) != 0 {
		t.Errorf("expected no apply on 5xx, got %v", driver.calls)
	}
	if len(driver.deleted) != 0 {
		t.Errorf("expected no eviction on 5xx, got %v", driver.deleted)
	}
	if regs, _ := reg.Load(); len(regs) != 1 {
		t.Errorf("expected registration kept, got %+v", regs)
	}
}

func TestConvergeSkipsOnTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close()

	reg := testRegistry(t)
	if err := reg.Append(Registration{APIHost: ts.URL, APIToken: "token-a", Interface: "wg0"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	driver := &fakeDriver{}
	New(reg, driver).Converge(context.Background())

	if len(driver.deleted) != 0 {
		t.Errorf("expected no eviction on transport error, got %v", driver.deleted)
	}
	if regs, _ := reg.Load(); len(regs) != 1 {
		t.Errorf("expected registration kept, got %+v", regs)
	}
}

func TestConvergeKeepsRegistrationOnApplyError(t *testing.T) {
	cfg, _, _ := servedConfig(t)
	ts := plannerStub(t, "token-a", cfg)
	defer ts.Close()

	reg := testRegistry(t)
	if err := reg.Append(Registration{APIHost: ts.URL, APIToken: "token-a", Interface: "wg0"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	driver := &fakeDriver{fail: context.DeadlineExceeded}
	New(reg, driver).Converge(context.Background())

	if len(driver.deleted) != 0 {
		t.Errorf("apply failure must not evict, got %v", driver.deleted)
	}
	if regs, _ := reg.Load(); len(regs) != 1 {
		t.Errorf("expected registration kept, got %+v", regs)
	}
}

func TestPlanRejectsBadKey(t *testing.T) {
	cfg, _, _ := servedConfig(t)
	cfg.Interface.PrivateKey = "not-a-key"

	if _, _, err := plan(cfg); err == nil {
		t.Fatal("expected error for malformed private key")
	}
}

func TestPlanOmitsOptionalPeerFields(t *testing.T) {
	cfg, _, _ := servedConfig(t)
	cfg.Peers[0].PresharedKey = ""
	cfg.Peers[0].PersistentKeepalive = 0

	device, _, err := plan(cfg)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}

	peer := device.Peers[0]
	if peer.PresharedKey != nil {
		t.Error("expected no preshared key")
	}
	if peer.PersistentKeepaliveInterval != nil {
		t.Error("expected no keepalive")
	}
}
