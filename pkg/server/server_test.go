package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/store"
	"github.com/wirewarden/wirewarden/pkg/vault"
)

const testAdminToken = "0f2d1a8e-test-admin-token"

type testServer struct {
	url   string
	store *store.Store
	db    *gorm.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := model.NewDatabase("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatal(err)
	}

	secret, err := vault.ParseSecret(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatal(err)
	}

	v, err := vault.New(secret)
	if err != nil {
		t.Fatal(err)
	}

	st := store.New(db, v)

	l := logrus.New()
	l.SetOutput(io.Discard)

	srv := New(st, WithAdminToken(testAdminToken), WithLogger(l))
	ts := httptest.NewServer(srv.router())
	t.Cleanup(ts.Close)

	return &testServer{url: ts.URL, store: st, db: db}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, ts.url+path, reader)
	if err != nil {
		t.Fatal(err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}

	return resp
}

func (ts *testServer) admin(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	return ts.do(t, method, path, testAdminToken, body)
}

func (ts *testServer) createNetwork(t *testing.T) CreateNetworkResponse {
	t.Helper()

	resp := ts.admin(t, http.MethodPost, "/networks", CreateNetworkRequest{
		Name:                "homelab",
		CIDR:                "10.0.0.0/24",
		DNSServers:          []string{"1.1.1.1"},
		PersistentKeepalive: 25,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating network, got %d", resp.StatusCode)
	}

	var network CreateNetworkResponse
	if err := json.NewDecoder(resp.Body).Decode(&network); err != nil {
		t.Fatal(err)
	}

	return network
}

func (ts *testServer) createServer(t *testing.T, networkID uint, name string) CreateServerResponse {
	t.Helper()

	resp := ts.admin(t, http.MethodPost, fmt.Sprintf("/networks/%d/servers", networkID), CreateServerRequest{Name: name})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating server, got %d", resp.StatusCode)
	}

	var server CreateServerResponse
	if err := json.NewDecoder(resp.Body).Decode(&server); err != nil {
		t.Fatal(err)
	}

	return server
}

func (ts *testServer) createClient(t *testing.T, networkID uint, name string) CreateClientResponse {
	t.Helper()

	resp := ts.admin(t, http.MethodPost, fmt.Sprintf("/networks/%d/clients", networkID), CreateClientRequest{Name: name})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating client, got %d", resp.StatusCode)
	}

	var client CreateClientResponse
	if err := json.NewDecoder(resp.Body).Decode(&client); err != nil {
		t.Fatal(err)
	}

	return client
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestAdminAuthentication(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/networks", "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp = ts.do(t, http.MethodGet, "/networks", "wrong-token", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", resp.StatusCode)
	}

	resp = ts.admin(t, http.MethodGet, "/networks", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 with admin token, got %d", resp.StatusCode)
	}
}

func TestNetworkLifecycle(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)

	if network.CIDR != "10.0.0.0/24" {
		t.Errorf("expected cidr 10.0.0.0/24, got %s", network.CIDR)
	}

	// Duplicate name.
	resp := ts.admin(t, http.MethodPost, "/networks", CreateNetworkRequest{Name: "homelab", CIDR: "10.1.0.0/24"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", resp.StatusCode)
	}

	// Invalid CIDR.
	resp = ts.admin(t, http.MethodPost, "/networks", CreateNetworkRequest{Name: "tiny", CIDR: "10.1.0.0/31"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for /31, got %d", resp.StatusCode)
	}

	keepalive := uint16(0)
	resp = ts.admin(t, http.MethodPut, fmt.Sprintf("/networks/%d", network.ID), UpdateNetworkRequest{PersistentKeepalive: &keepalive})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 updating network, got %d", resp.StatusCode)
	}

	var updated UpdateNetworkResponse
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatal(err)
	}
	if updated.PersistentKeepalive != 0 {
		t.Errorf("expected keepalive 0, got %d", updated.PersistentKeepalive)
	}

	resp = ts.admin(t, http.MethodDelete, fmt.Sprintf("/networks/%d", network.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 deleting network, got %d", resp.StatusCode)
	}

	resp = ts.admin(t, http.MethodGet, fmt.Sprintf("/networks/%d", network.ID), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestCreateServerRevealsTokenOnce(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)

	server := ts.createServer(t, network.ID, "hub")
	if len(server.APIToken) != 36 {
		t.Errorf("expected full uuid token on create, got %q", server.APIToken)
	}
	if !strings.Contains(server.ConnectCommand, server.APIToken) {
		t.Errorf("connect command must carry the token: %q", server.ConnectCommand)
	}
	if !strings.HasPrefix(server.ConnectCommand, "wirewarden connect --api-host http://") {
		t.Errorf("unexpected connect command: %q", server.ConnectCommand)
	}
	if server.Address != "10.0.0.1" {
		t.Errorf("expected address 10.0.0.1, got %s", server.Address)
	}

	resp := ts.admin(t, http.MethodGet, fmt.Sprintf("/networks/%d/servers/%d", network.ID, server.ID), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var fetched GetServerResponse
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatal(err)
	}
	if fetched.APIToken == server.APIToken {
		t.Error("token must be redacted after creation")
	}
	if !strings.HasPrefix(server.APIToken, strings.TrimSuffix(fetched.APIToken, "…")) {
		t.Errorf("redacted token %q is not a prefix of %q", fetched.APIToken, server.APIToken)
	}
}

func TestCreateServerRejectsExplicitZeroPort(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)

	port := uint16(0)
	resp := ts.admin(t, http.MethodPost, fmt.Sprintf("/networks/%d/servers", network.ID), CreateServerRequest{
		Name:         "hub",
		EndpointPort: &port,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for port 0, got %d", resp.StatusCode)
	}
}

func TestNetworkFullSurfacesAsBadRequest(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.admin(t, http.MethodPost, "/networks", CreateNetworkRequest{Name: "tiny", CIDR: "10.9.9.0/30"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var network CreateNetworkResponse
	if err := json.NewDecoder(resp.Body).Decode(&network); err != nil {
		t.Fatal(err)
	}

	ts.createServer(t, network.ID, "hub")
	ts.createClient(t, network.ID, "laptop")

	r := ts.admin(t, http.MethodPost, fmt.Sprintf("/networks/%d/clients", network.ID), CreateClientRequest{Name: "phone"})
	r.Body.Close()
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 when the network is full, got %d", r.StatusCode)
	}
}

func TestClientConfigEndpoint(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)
	server := ts.createServer(t, network.ID, "hub")

	resp := ts.admin(t, http.MethodPost, fmt.Sprintf("/networks/%d/servers/%d/routes", network.ID, server.ID), CreateRouteRequest{CIDR: "192.168.5.0/24"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 creating route, got %d", resp.StatusCode)
	}

	client := ts.createClient(t, network.ID, "laptop")

	resp = ts.admin(t, http.MethodGet, fmt.Sprintf("/networks/%d/clients/%d/config", network.ID, client.ID), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("expected text/plain, got %s", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	rendered := string(body)
	if !strings.Contains(rendered, "AllowedIPs = 10.0.0.0/24, 192.168.5.0/24\n") {
		t.Errorf("unexpected allowed ips in:\n%s", rendered)
	}
	if !strings.Contains(rendered, "Address = 10.0.0.2/32\n") {
		t.Errorf("unexpected address in:\n%s", rendered)
	}
}

func TestRouteLifecycle(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)
	server := ts.createServer(t, network.ID, "hub")

	base := fmt.Sprintf("/networks/%d/servers/%d/routes", network.ID, server.ID)

	resp := ts.admin(t, http.MethodPost, base, CreateRouteRequest{CIDR: "192.168.5.0/24"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = ts.admin(t, http.MethodPost, base, CreateRouteRequest{CIDR: "192.168.5.0/24"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for duplicate route, got %d", resp.StatusCode)
	}

	resp = ts.admin(t, http.MethodDelete, base+"?cidr=192.168.5.0%2F24", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 deleting route, got %d", resp.StatusCode)
	}

	resp = ts.admin(t, http.MethodDelete, base+"?cidr=192.168.5.0%2F24", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for missing route, got %d", resp.StatusCode)
	}
}

func TestRotatePSKsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)
	server := ts.createServer(t, network.ID, "hub")
	client := ts.createClient(t, network.ID, "laptop")

	// Materialize the PSK row through a gateway pull.
	resp := ts.do(t, http.MethodGet, "/api/daemon/config", server.APIToken, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from daemon config, got %d", resp.StatusCode)
	}

	resp = ts.admin(t, http.MethodPost, fmt.Sprintf("/networks/%d/clients/%d/rotate-psks", network.ID, client.ID), nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var rotated RotatePSKsResponse
	if err := json.NewDecoder(resp.Body).Decode(&rotated); err != nil {
		t.Fatal(err)
	}
	if rotated.Rotated != 1 {
		t.Errorf("expected 1 rotated pair, got %d", rotated.Rotated)
	}
}

func TestCrossNetworkLookupsAre404(t *testing.T) {
	ts := newTestServer(t)
	network := ts.createNetwork(t)

	resp := ts.admin(t, http.MethodPost, "/networks", CreateNetworkRequest{Name: "office", CIDR: "10.1.0.0/24"})
	defer resp.Body.Close()
	var other CreateNetworkResponse
	if err := json.NewDecoder(resp.Body).Decode(&other); err != nil {
		t.Fatal(err)
	}

	server := ts.createServer(t, network.ID, "hub")

	r := ts.admin(t, http.MethodGet, fmt.Sprintf("/networks/%d/servers/%d", other.ID, server.ID), nil)
	r.Body.Close()
	if r.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for server under the wrong network, got %d", r.StatusCode)
	}
}
