package store

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wirewarden/wirewarden/pkg/model"
	"github.com/wirewarden/wirewarden/pkg/vault"
)

// ensurePeerPSK returns the PSK row for (server, client), creating one if
// absent. The insert is ON CONFLICT DO NOTHING followed by a read, so two
// concurrent renders converge on the same row without locking.
func (s *Store) ensurePeerPSK(ctx context.Context, serverID, clientID uint) (*model.PeerPresharedKey, error) {
	box, err := s.vault.NewPresharedKey()
	if err != nil {
		return nil, err
	}

	row := model.PeerPresharedKey{ServerID: serverID, ClientID: clientID, PSK: box.Ciphertext, Nonce: box.Nonce}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	if err != nil {
		return nil, err
	}

	var psk model.PeerPresharedKey
	err = s.db.WithContext(ctx).Where("server_id = ? AND client_id = ?", serverID, clientID).First(&psk).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &psk, nil
}

func (s *Store) openPSK(psk *model.PeerPresharedKey) (string, error) {
	key, err := s.vault.OpenKey(vault.SealedBox{Ciphertext: psk.PSK, Nonce: psk.Nonce})
	if err != nil {
		return "", err
	}

	return key.String(), nil
}

// RotateClientPSKs reseals every PSK the client shares with a server. The
// next gateway pull and the next rendered client config both pick up the
// new keys. Returns how many pairs were rotated.
func (s *Store) RotateClientPSKs(ctx context.Context, clientID uint) (int, error) {
	rotated := 0
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client model.Client
		if err := tx.First(&client, clientID).Error; err != nil {
			return notFound(err)
		}

		var rows []model.PeerPresharedKey
		if err := tx.Where("client_id = ?", clientID).Find(&rows).Error; err != nil {
			return err
		}

		for i := range rows {
			box, err := s.vault.NewPresharedKey()
			if err != nil {
				return err
			}

			rows[i].PSK = box.Ciphertext
			rows[i].Nonce = box.Nonce
			if err := tx.Save(&rows[i]).Error; err != nil {
				return err
			}
		}

		rotated = len(rows)
		return nil
	})

	return rotated, err
}
