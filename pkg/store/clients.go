package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/pkg/model"
)

type ClientParams struct {
	Name string
}

// CreateClient allocates the smallest free address offset in the network
// and generates a sealed keypair for the client.
func (s *Store) CreateClient(ctx context.Context, networkID uint, params ClientParams) (*model.Client, error) {
	if params.Name == "" {
		return nil, validationErr(fmt.Errorf("client name must not be empty"))
	}

	var client model.Client
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

		client = model.Client{
			NetworkID:     networkID,
			Name:          params.Name,
			KeyID:         key.ID,
			AddressOffset: offset,
		}
		return tx.Create(&client).Error
	})
	if isUniqueViolation(err, "name") {
		return nil, ErrDuplicateName
	}
	if err != nil {
		return nil, err
	}

	client.Key = key
	return &client, nil
}

func (s *Store) GetClient(ctx context.Context, id uint) (*model.Client, error) {
	var client model.Client
	if err := s.db.WithContext(ctx).Preload("Key").First(&client, id).Error; err != nil {
		return nil, notFound(err)
	}

	return &client, nil
}

func (s *Store) ListClients(ctx context.Context, networkID uint) ([]model.Client, error) {
	var clients []model.Client
	err := s.db.WithContext(ctx).Preload("Key").Where("network_id = ?", networkID).Order("id").Find(&clients).Error
	if err != nil {
		return nil, err
	}

	return clients, nil
}

// DeleteClient removes the client, its key and every PSK it shares with a
// server. The freed address offset becomes allocatable again.
func (s *Store) DeleteClient(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client model.Client
		if err := tx.First(&client, id).Error; err != nil {
			return notFound(err)
		}

		if err := tx.Unscoped().Where("client_id = ?", id).Delete(&model.PeerPresharedKey{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Delete(&client).Error; err != nil {
			return err
		}

		return tx.Unscoped().Delete(&model.WireGuardKey{}, client.KeyID).Error
	})
}
