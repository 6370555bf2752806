// Package api holds the wire types exchanged between the planner and the
// convergence daemon. The JSON shape is part of the public contract and
// must stay stable across releases.
package api

// DaemonConfig is the response of GET /api/daemon/config: the full desired
// state of one gateway's WireGuard interface.
type DaemonConfig struct {
	Interface InterfaceConfig `json:"interface"`
	Peers     []PeerConfig    `json:"peers"`
}

// InterfaceConfig describes the local end of the link.
type InterfaceConfig struct {
	Address    string `json:"address"`
	PrefixLen  int    `json:"prefix_len"`
	ListenPort uint16 `json:"listen_port"`
	PrivateKey string `json:"private_key"`
}

// PeerConfig describes one client peer of the gateway. AllowedIPs entries
// are CIDR strings; PersistentKeepalive is omitted when zero.
type PeerConfig struct {
	PublicKey           string   `json:"public_key"`
	PresharedKey        string   `json:"preshared_key"`
	AllowedIPs          []string `json:"allowed_ips"`
	PersistentKeepalive uint16   `json:"persistent_keepalive,omitempty"`
}
