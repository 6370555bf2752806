package store

import (
	"context"
	"fmt"
	"net/netip"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/pkg/model"
)

type NetworkParams struct {
	Name                string
	CIDR                netip.Prefix
	DNSServers          []string
	PersistentKeepalive uint16
}

func (s *Store) CreateNetwork(ctx context.Context, params NetworkParams) (*model.Network, error) {
	if params.Name == "" {
		return nil, validationErr(fmt.Errorf("network name must not be empty"))
	}

	if err := model.ValidateNetworkCIDR(params.CIDR); err != nil {
		return nil, validationErr(err)
	}

	dns, err := model.NormalizeDNSServers(params.DNSServers)
	if err != nil {
		return nil, validationErr(err)
	}

	network := model.Network{
		Name:                params.Name,
		CIDR:                model.Prefix(params.CIDR),
		DNSServers:          datatypes.NewJSONSlice(dns),
		PersistentKeepalive: params.PersistentKeepalive,
	}

	err = s.db.WithContext(ctx).Create(&network).Error
	if isUniqueViolation(err, "name") {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}

	return &network, nil
}

func (s *Store) GetNetwork(ctx context.Context, id uint) (*model.Network, error) {
	var network model.Network
	if err := s.db.WithContext(ctx).First(&network, id).Error; err != nil {
		return nil, notFound(err)
	}

	return &network, nil
}

func (s *Store) ListNetworks(ctx context.Context) ([]model.Network, error) {
	var networks []model.Network
	if err := s.db.WithContext(ctx).Order("id").Find(&networks).Error; err != nil {
		return nil, err
	}

	return networks, nil
}

// UpdateNetworkParams carries the two mutable network attributes. Nil
// leaves a field unchanged.
type UpdateNetworkParams struct {
	DNSServers          *[]string
	PersistentKeepalive *uint16
}

func (s *Store) UpdateNetwork(ctx context.Context, id uint, params UpdateNetworkParams) (*model.Network, error) {
	var network model.Network
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&network, id).Error; err != nil {
			return notFound(err)
		}

		if params.DNSServers != nil {
			dns, err := model.NormalizeDNSServers(*params.DNSServers)
			if err != nil {
				return validationErr(err)
			}
			network.DNSServers = datatypes.NewJSONSlice(dns)
		}

		if params.PersistentKeepalive != nil {
			network.PersistentKeepalive = *params.PersistentKeepalive
		}

		return tx.Save(&network).Error
	})
	if err != nil {
		return nil, err
	}

	return &network, nil
}

// DeleteNetwork removes a network and everything inside it: servers,
// clients, their keys, advertised routes and pairwise PSKs.
func (s *Store) DeleteNetwork(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var network model.Network
		if err := tx.First(&network, id).Error; err != nil {
			return notFound(err)
		}

		var serverIDs, clientIDs, keyIDs []uint
		if err := tx.Model(&model.Server{}).Where("network_id = ?", id).Pluck("id", &serverIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Client{}).Where("network_id = ?", id).Pluck("id", &clientIDs).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Server{}).Where("network_id = ?", id).Pluck("key_id", &keyIDs).Error; err != nil {
			return err
		}

		var clientKeyIDs []uint
		if err := tx.Model(&model.Client{}).Where("network_id = ?", id).Pluck("key_id", &clientKeyIDs).Error; err != nil {
			return err
		}
		keyIDs = append(keyIDs, clientKeyIDs...)

		if err := tx.Unscoped().Where("server_id IN ?", serverIDs).Delete(&model.PeerPresharedKey{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("client_id IN ?", clientIDs).Delete(&model.PeerPresharedKey{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("server_id IN ?", serverIDs).Delete(&model.ServerRoute{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("network_id = ?", id).Delete(&model.Server{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("network_id = ?", id).Delete(&model.Client{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("id IN ?", keyIDs).Delete(&model.WireGuardKey{}).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(&network).Error
	})
}
