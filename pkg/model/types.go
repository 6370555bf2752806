package model

import (
	"database/sql/driver"
	"fmt"
	"net/netip"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Prefix stores a netip.Prefix in its canonical string form.
type Prefix netip.Prefix

func (p *Prefix) Scan(value any) error {
	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("cannot convert to string: %v", value)
	}

	prefix, err := netip.ParsePrefix(str)
	if err != nil {
		return fmt.Errorf("parsing prefix %s: %w", str, err)
	}

	*p = Prefix(prefix)
	return nil
}

func (p Prefix) Value() (driver.Value, error) {
	return netip.Prefix(p).String(), nil
}

func (p Prefix) ToNetip() netip.Prefix {
	return netip.Prefix(p)
}

// Network is one managed WireGuard network: an IPv4 prefix plus the DNS
// and keepalive policy shared by everything inside it. Servers, clients,
// routes and PSKs hang off it and die with it.
type Network struct {
	gorm.Model
	Name                string `gorm:"unique"`
	CIDR                Prefix `gorm:"column:cidr"`
	DNSServers          datatypes.JSONSlice[string]
	PersistentKeepalive uint16

	Servers []Server
	Clients []Client
}

func (Network) TableName() string { return "networks" }

// WireGuardKey holds one Curve25519 keypair. The private key is AEAD
// ciphertext with its nonce stored beside it; only the vault opens it.
type WireGuardKey struct {
	gorm.Model
	PublicKey  string
	PrivateKey []byte
	Nonce      []byte
}

func (WireGuardKey) TableName() string { return "wg_keys" }

type Server struct {
	gorm.Model
	NetworkID uint   `gorm:"uniqueIndex:uniq_wg_servers_name;uniqueIndex:uniq_wg_servers_offset"`
	Name      string `gorm:"uniqueIndex:uniq_wg_servers_name"`

	KeyID uint
	Key   WireGuardKey

	APIToken                string `gorm:"unique"`
	AddressOffset           uint32 `gorm:"uniqueIndex:uniq_wg_servers_offset"`
	ForwardsInternetTraffic bool
	EndpointHost            *string
	EndpointPort            uint16
}

func (Server) TableName() string { return "wg_servers" }

type Client struct {
	gorm.Model
	NetworkID uint   `gorm:"uniqueIndex:uniq_wg_clients_name;uniqueIndex:uniq_wg_clients_offset"`
	Name      string `gorm:"uniqueIndex:uniq_wg_clients_name"`

	KeyID uint
	Key   WireGuardKey

	AddressOffset uint32 `gorm:"uniqueIndex:uniq_wg_clients_offset"`
}

func (Client) TableName() string { return "wg_clients" }

type ServerRoute struct {
	gorm.Model
	ServerID uint   `gorm:"uniqueIndex:uniq_wg_server_routes"`
	CIDR     Prefix `gorm:"column:cidr;uniqueIndex:uniq_wg_server_routes"`
}

func (ServerRoute) TableName() string { return "wg_server_routes" }

// PeerPresharedKey is the pairwise PSK for one (server, client) edge,
// sealed the same way private keys are. Owned by neither endpoint:
// deleting either one removes the row.
type PeerPresharedKey struct {
	gorm.Model
	ServerID uint `gorm:"uniqueIndex:uniq_wg_peer_psks"`
	ClientID uint `gorm:"uniqueIndex:uniq_wg_peer_psks"`

	PSK   []byte `gorm:"column:psk"`
	Nonce []byte
}

func (PeerPresharedKey) TableName() string { return "wg_peer_psks" }

// ValidateNetworkCIDR enforces the accepted shape of a network prefix:
// IPv4, masked, prefix length between /8 and /30.
func ValidateNetworkCIDR(p netip.Prefix) error {
	if !p.Addr().Is4() {
		return fmt.Errorf("network cidr must be IPv4")
	}

	if p.Bits() < 8 || p.Bits() > 30 {
		return fmt.Errorf("network prefix length must be between /8 and /30")
	}

	if p.Masked() != p {
		return fmt.Errorf("network cidr %s is not a network address", p)
	}

	return nil
}

// ValidateRouteCIDR accepts any masked IPv4 prefix, 0.0.0.0/0 included.
func ValidateRouteCIDR(p netip.Prefix) error {
	if !p.Addr().Is4() {
		return fmt.Errorf("route cidr must be IPv4")
	}

	if p.Masked() != p {
		return fmt.Errorf("route cidr %s is not a network address", p)
	}

	return nil
}

// NormalizeDNSServers validates every entry as an IPv4 literal and drops
// duplicates, preserving first-occurrence order.
func NormalizeDNSServers(entries []string) ([]string, error) {
	seen := make(map[string]struct{}, len(entries))
	var result []string
	for _, entry := range entries {
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("parsing dns server %s: %w", entry, err)
		}

		if !addr.Is4() {
			return nil, fmt.Errorf("dns server %s is not IPv4", entry)
		}

		canonical := addr.String()
		if _, ok := seen[canonical]; ok {
			continue
		}

		seen[canonical] = struct{}{}
		result = append(result, canonical)
	}

	return result, nil
}
