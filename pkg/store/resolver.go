package store

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/wirewarden/wirewarden/pkg/api"
	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/vault"
	"github.com/wirewarden/wirewarden/pkg/wgconf"
)

// GatewayView resolves a capability token to its server and assembles the
// config the gateway daemon applies: the unsealed private key, the server's
// address inside the network, and one peer per client with that pair's PSK.
// An unknown token surfaces as ErrUnknownToken so callers can answer 401
// without revealing whether the server ever existed.
func (s *Store) GatewayView(ctx context.Context, token string) (api.DaemonConfig, error) {
	server, err := s.GetServerByToken(ctx, token)
	if err != nil {
		return api.DaemonConfig{}, err
	}

	var network model.Network
	if err := s.db.WithContext(ctx).First(&network, server.NetworkID).Error; err != nil {
		return api.DaemonConfig{}, notFound(err)
	}

	privateKey, err := s.vault.OpenKey(vault.SealedBox{Ciphertext: server.Key.PrivateKey, Nonce: server.Key.Nonce})
	if err != nil {
		return api.DaemonConfig{}, err
	}

	address, err := model.HostAddress(network.CIDR.ToNetip(), server.AddressOffset)
	if err != nil {
		return api.DaemonConfig{}, err
	}

	clients, err := s.ListClients(ctx, network.ID)
	if err != nil {
		return api.DaemonConfig{}, err
	}

	peers := make([]api.PeerConfig, 0, len(clients))
	for _, client := range clients {
		psk, err := s.ensurePeerPSK(ctx, server.ID, client.ID)
		if err != nil {
			return api.DaemonConfig{}, err
		}

		presharedKey, err := s.openPSK(psk)
		if err != nil {
			return api.DaemonConfig{}, err
		}

		clientAddr, err := model.HostAddress(network.CIDR.ToNetip(), client.AddressOffset)
		if err != nil {
			return api.DaemonConfig{}, err
		}

		peers = append(peers, api.PeerConfig{
			PublicKey:           client.Key.PublicKey,
			PresharedKey:        presharedKey,
			AllowedIPs:          []string{fmt.Sprintf("%s/32", clientAddr)},
			PersistentKeepalive: network.PersistentKeepalive,
		})
	}

	return api.DaemonConfig{
		Interface: api.InterfaceConfig{
			Address:    address.String(),
			PrefixLen:  network.CIDR.ToNetip().Bits(),
			ListenPort: server.EndpointPort,
			PrivateKey: privateKey.String(),
		},
		Peers: peers,
	}, nil
}

// ClientConfig renders the wg-quick config for a client. With
// forwardInternet set, servers flagged as internet gateways advertise
// 0.0.0.0/0; every other server advertises the network CIDR plus its
// routes. Rendering is read-only except for lazy PSK creation, so repeated
// calls between mutations produce identical bytes.
func (s *Store) ClientConfig(ctx context.Context, clientID uint, forwardInternet bool) (string, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return "", err
	}

	var network model.Network
	if err := s.db.WithContext(ctx).First(&network, client.NetworkID).Error; err != nil {
		return "", notFound(err)
	}

	privateKey, err := s.vault.OpenKey(vault.SealedBox{Ciphertext: client.Key.PrivateKey, Nonce: client.Key.Nonce})
	if err != nil {
		return "", err
	}

	address, err := model.HostAddress(network.CIDR.ToNetip(), client.AddressOffset)
	if err != nil {
		return "", err
	}

	servers, err := s.ListServers(ctx, network.ID)
	if err != nil {
		return "", err
	}

	config := wgconf.Config{
		Name: client.Name,
		Interface: wgconf.Interface{
			PrivateKey: privateKey.String(),
			Address:    address,
			DNS:        []string(network.DNSServers),
		},
	}

	for _, server := range servers {
		psk, err := s.ensurePeerPSK(ctx, server.ID, client.ID)
		if err != nil {
			return "", err
		}

		presharedKey, err := s.openPSK(psk)
		if err != nil {
			return "", err
		}

		peer := wgconf.Peer{
			Name:                server.Name,
			PublicKey:           server.Key.PublicKey,
			PresharedKey:        presharedKey,
			PersistentKeepalive: network.PersistentKeepalive,
		}

		if server.EndpointHost != nil {
			peer.Endpoint = fmt.Sprintf("%s:%d", *server.EndpointHost, server.EndpointPort)
		}

		if forwardInternet && server.ForwardsInternetTraffic {
			peer.AllowedIPs = []netip.Prefix{wgconf.DefaultRoute}
		} else {
			routes, err := s.serverRoutePrefixes(ctx, server.ID)
			if err != nil {
				return "", err
			}
			peer.AllowedIPs = wgconf.AllowedIPUnion(network.CIDR.ToNetip(), routes)
		}

		config.Peers = append(config.Peers, peer)
	}

	return config.Render(), nil
}
