// Package localseal seals codes with a locally held key. It stands in for KMS
// in development and tests; production deployments use the kms package.
package localseal

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/go-otp-service/internal/domain"
	"golang.org/x/crypto/chacha20poly1305"
)

// Ciphertext layout: [0] version | [1..24] nonce | [25..] ciphertext+tag.
const version byte = 1

var aad = []byte("otp-code/v1")

// Sealer implements XChaCha20-Poly1305 sealing under a fixed 32-byte key.
type Sealer struct {
	key []byte
}

func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("localseal: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

func (s *Sealer) Seal(ctx context.Context, code string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("localseal: %w: %w", domain.ErrEncryption, err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("localseal: %w: %w", domain.ErrEncryption, err)
	}
	out := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(code)+aead.Overhead())
	out[0] = version
	if _, err := rand.Read(out[1:]); err != nil {
		return "", fmt.Errorf("localseal: nonce: %w: %w", domain.ErrEncryption, err)
	}
	out = aead.Seal(out, out[1:], []byte(code), aad)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Sealer) Unseal(ctx context.Context, sealed string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("localseal: %w: %w", domain.ErrDecryption, err)
	}
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("localseal: malformed ciphertext: %w", domain.ErrDecryption)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("localseal: %w: %w", domain.ErrDecryption, err)
	}
	if len(blob) < 1+aead.NonceSize()+aead.Overhead() {
		return "", fmt.Errorf("localseal: ciphertext too short: %w", domain.ErrDecryption)
	}
	if blob[0] != version {
		return "", fmt.Errorf("localseal: unsupported version %d: %w", blob[0], domain.ErrDecryption)
	}
	nonce, ct := blob[1:1+aead.NonceSize()], blob[1+aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ct, aad)
	if err != nil {
		// Do not distinguish wrong key from tampering.
		return "", fmt.Errorf("localseal: authentication failed: %w", domain.ErrDecryption)
	}
	return string(plain), nil
}
