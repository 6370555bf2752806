// Package store persists networks, gateways, clients and key material, and
// computes the peer views served to gateways and exported for clients.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/wirewarden/wirewarden/pkg/vault"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrUnknownToken   = errors.New("unknown api token")
	ErrDuplicateName  = errors.New("name already in use")
	ErrDuplicateRoute = errors.New("route already advertised")
	ErrValidation     = errors.New("validation failed")
	ErrConflict       = errors.New("transaction conflict")
)

const serializableAttempts = 3

type Store struct {
	db    *gorm.DB
	vault *vault.Vault
}

func New(db *gorm.DB, v *vault.Vault) *Store {
	return &Store{db: db, vault: v}
}

// Ping reports whether the database connection is usable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}

	return db.PingContext(ctx)
}

// serializable runs fn inside a SERIALIZABLE transaction. Serialization
// failures and allocation collisions rerun fn, which therefore always works
// from a fresh scan. Exhausted retries surface as ErrConflict.
func (s *Store) serializable(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var err error
	for attempt := 0; attempt < serializableAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil || !retryableTx(err) {
			return err
		}
	}

	return fmt.Errorf("%w: %v", ErrConflict, err)
}

func retryableTx(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "40001") ||
		strings.Contains(msg, "serialization") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		isUniqueViolation(err, "offset")
}

// isUniqueViolation matches sqlite and postgres unique-constraint messages.
// hint narrows the match to one index: sqlite names the columns, postgres
// the index, so the hint must occur in both.
func isUniqueViolation(err error, hint string) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return false
	}

	return strings.Contains(msg, hint)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	return err
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %v", ErrValidation, err)
}
