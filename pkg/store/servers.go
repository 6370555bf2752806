package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/pkg/model"
)

// DefaultListenPort is used when a server is created without an explicit
// endpoint port.
const DefaultListenPort = 51820

type ServerParams struct {
	Name                    string
	EndpointHost            *string
	EndpointPort            uint16 // 0 selects DefaultListenPort
	ForwardsInternetTraffic bool
}

// CreateServer allocates the smallest free address offset in the network,
// generates and seals a keypair, and mints the server's capability token.
func (s *Store) CreateServer(ctx context.Context, networkID uint, params ServerParams) (*model.Server, error) {
	if params.Name == "" {
		return nil, validationErr(fmt.Errorf("server name must not be empty"))
	}

	port := params.EndpointPort
	if port == 0 {
		port = DefaultListenPort
	}

	var server model.Server
	var key model.WireGuardKey
	err := s.serializable(ctx, func(tx *gorm.DB) error {
		var network model.Network
		if err := tx.First(&network, networkID).Error; err != nil {
			return notFound(err)
		}

		offset, err := s.nextOffset(tx, network)
		if err != nil {
			return err
		}

		public, box, err := s.vault.NewKeypair()
		if err != nil {
			return err
		}

		key = model.WireGuardKey{PublicKey: public, PrivateKey: box.Ciphertext, Nonce: box.Nonce}
		if err := tx.Create(&key).Error; err != nil {
			return err
		}

		server = model.Server{
			NetworkID:               networkID,
			Name:                    params.Name,
			KeyID:                   key.ID,
			APIToken:                uuid.NewString(),
			AddressOffset:           offset,
			ForwardsInternetTraffic: params.ForwardsInternetTraffic,
			EndpointHost:            params.EndpointHost,
			EndpointPort:            port,
		}
		return tx.Create(&server).Error
	})
	if isUniqueViolation(err, "name") {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}

	server.Key = key
	return &server, nil
}

// nextOffset scans the offsets taken by servers and clients of the network
// and returns the smallest free one. Runs inside the caller's transaction.
func (s *Store) nextOffset(tx *gorm.DB, network model.Network) (uint32, error) {
	var used []uint32
	if err := tx.Model(&model.Server{}).Where("network_id = ?", network.ID).Pluck("address_offset", &used).Error; err != nil {
		return 0, err
	}

	var clientUsed []uint32
	if err := tx.Model(&model.Client{}).Where("network_id = ?", network.ID).Pluck("address_offset", &clientUsed).Error; err != nil {
		return 0, err
	}

	return model.SmallestFreeOffset(network.CIDR.ToNetip().Bits(), append(used, clientUsed...))
}

func (s *Store) GetServer(ctx context.Context, id uint) (*model.Server, error) {
	var server model.Server
	if err := s.db.WithContext(ctx).Preload("Key").First(&server, id).Error; err != nil {
		return nil, notFound(err)
	}

	return &server, nil
}

func (s *Store) GetServerByToken(ctx context.Context, token string) (*model.Server, error) {
	var server model.Server
	err := s.db.WithContext(ctx).Preload("Key").Where("api_token = ?", token).First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownToken
		}
		return nil, err
	}

	return &server, nil
}

func (s *Store) ListServers(ctx context.Context, networkID uint) ([]model.Server, error) {
	var servers []model.Server
	err := s.db.WithContext(ctx).Preload("Key").Where("network_id = ?", networkID).Order("id").Find(&servers).Error
	if err != nil {
		return nil, err
	}

	return servers, nil
}

// UpdateServerParams replaces the mutable server attributes wholesale. A
// nil EndpointHost clears the endpoint; port 0 selects DefaultListenPort.
type UpdateServerParams struct {
	EndpointHost            *string
	EndpointPort            uint16
	ForwardsInternetTraffic bool
}

func (s *Store) UpdateServer(ctx context.Context, id uint, params UpdateServerParams) (*model.Server, error) {
	port := params.EndpointPort
	if port == 0 {
		port = DefaultListenPort
	}

	var server model.Server
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Key").First(&server, id).Error; err != nil {
			return notFound(err)
		}

		server.EndpointHost = params.EndpointHost
		server.EndpointPort = port
		server.ForwardsInternetTraffic = params.ForwardsInternetTraffic
		return tx.Omit("Key").Save(&server).Error
	})
	if err != nil {
		return nil, err
	}

	return &server, nil
}

// DeleteServer removes the server together with its key, advertised routes
// and pairwise PSKs. The freed address offset becomes allocatable again.
func (s *Store) DeleteServer(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var server model.Server
		if err := tx.First(&server, id).Error; err != nil {
			return notFound(err)
		}

		if err := tx.Unscoped().Where("server_id = ?", id).Delete(&model.PeerPresharedKey{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("server_id = ?", id).Delete(&model.ServerRoute{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&server).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(&model.WireGuardKey{}, server.KeyID).Error
	})
}
