package server

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/wirewarden/wirewarden/pkg/api"
	"github.com/wirewarden/wirewarden/pkg/model"
)

func TestDaemonConfigRequiresToken(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/daemon/config", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	// An unknown token answers exactly like a missing one.
	resp = ts.do(t, http.MethodGet, "/api/daemon/config", uuid.NewString(), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown token, got %d", resp.StatusCode)
	}
}

func TestDaemonConfig(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)
	server := ts.createServer(t, network.ID, "hub")
	client := ts.createClient(t, network.ID, "laptop")

	resp := ts.do(t, http.MethodGet, "/api/daemon/config", server.APIToken, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var config api.DaemonConfig
	if err := json.NewDecoder(resp.Body).Decode(&config); err != nil {
		t.Fatal(err)
	}

	if config.Interface.Address != "10.0.0.1" {
		t.Errorf("expected address 10.0.0.1, got %s", config.Interface.Address)
	}
	if config.Interface.PrefixLen != 24 {
		t.Errorf("expected prefix_len 24, got %d", config.Interface.PrefixLen)
	}
	if config.Interface.ListenPort != 51820 {
		t.Errorf("expected listen_port 51820, got %d", config.Interface.ListenPort)
	}
	if config.Interface.PrivateKey == "" {
		t.Error("missing private key")
	}

	if len(config.Peers) != 1 {
		t.Fatalf("expected one peer, got %d", len(config.Peers))
	}

	peer := config.Peers[0]
	if peer.PublicKey != client.PublicKey {
		t.Errorf("expected peer key %s, got %s", client.PublicKey, peer.PublicKey)
	}
	if diff := cmp.Diff([]string{"10.0.0.2/32"}, peer.AllowedIPs); diff != "" {
		t.Errorf("unexpected allowed ips (-want +got):\n%s", diff)
	}
	if peer.PersistentKeepalive != 25 {
		t.Errorf("expected keepalive 25, got %d", peer.PersistentKeepalive)
	}
	if peer.PresharedKey == "" {
		t.Error("missing preshared key")
	}
}

func TestDaemonConfigNetworkGone(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)
	server := ts.createServer(t, network.ID, "hub")

	// Remove the network row from under the server, as a concurrent delete
	// would between the token lookup and the network read.
	if err := ts.db.Unscoped().Delete(&model.Network{}, network.ID).Error; err != nil {
		t.Fatal(err)
	}

	resp := ts.do(t, http.MethodGet, "/api/daemon/config", server.APIToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 when the network is gone, got %d", resp.StatusCode)
	}
}
