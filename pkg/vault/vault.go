// Package vault seals WireGuard private keys and preshared keys with an
// XChaCha20-Poly1305 AEAD before they are stored. Key material only ever
// leaves this package encrypted or on its way into a rendered config.
package vault

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.zx2c4.com/wireguard/wgctrl/wgtypes"
)

// ErrUnseal is returned when a stored secret no longer decrypts, usually
// because the configured key secret changed since the record was written.
// Callers must surface it. Regenerating the key instead would silently
// invalidate every peer that pinned the old public key.
var ErrUnseal = errors.New("cannot unseal stored secret")

// ParseSecret decodes a 64 character hex string into the 32 byte vault key.
func ParseSecret(s string) ([]byte, error) {
	secret, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding key secret: %w", err)
	}

	if len(secret) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("key secret must be %d bytes, got %d", chacha20poly1305.KeySize, len(secret))
	}

	return secret, nil
}

type Vault struct {
	aead cipher.AEAD
}

func New(secret []byte) (*Vault, error) {
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return nil, fmt.Errorf("initializing aead: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// SealedBox is one encrypted secret with the nonce it was sealed under.
// Every Seal call draws a fresh random nonce.
type SealedBox struct {
	Ciphertext []byte
	Nonce      []byte
}

func (v *Vault) Seal(secret []byte) (SealedBox, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return SealedBox{}, fmt.Errorf("generating nonce: %w", err)
	}

	return SealedBox{
		Ciphertext: v.aead.Seal(nil, nonce, secret, nil),
		Nonce:      nonce,
	}, nil
}

func (v *Vault) Open(box SealedBox) ([]byte, error) {
	plaintext, err := v.aead.Open(nil, box.Nonce, box.Ciphertext, nil)
	if err != nil {
		return nil, ErrUnseal
	}

	return plaintext, nil
}

// NewKeypair generates a Curve25519 keypair and returns the base64 public
// key alongside the sealed private key.
func (v *Vault) NewKeypair() (string, SealedBox, error) {
	key, err := wgtypes.GeneratePrivateKey()
	if err != nil {
		return "", SealedBox{}, fmt.Errorf("generating private key: %w", err)
	}

	box, err := v.Seal(key[:])
	if err != nil {
		return "", SealedBox{}, err
	}

	return key.PublicKey().String(), box, nil
}

// NewPresharedKey generates and seals a random 32 byte preshared key.
func (v *Vault) NewPresharedKey() (SealedBox, error) {
	key, err := wgtypes.GenerateKey()
	if err != nil {
		return SealedBox{}, fmt.Errorf("generating preshared key: %w", err)
	}

	return v.Seal(key[:])
}

// OpenKey unseals a box holding WireGuard key material.
func (v *Vault) OpenKey(box SealedBox) (wgtypes.Key, error) {
	plaintext, err := v.Open(box)
	if err != nil {
		return wgtypes.Key{}, err
	}

	key, err := wgtypes.NewKey(plaintext)
	if err != nil {
		return wgtypes.Key{}, fmt.Errorf("decoding unsealed key: %w", err)
	}

	return key, nil
}
