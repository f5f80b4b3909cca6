package localseal

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/go-otp-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestNewSealer_RejectsShortKey(t *testing.T) {
	_, err := NewSealer([]byte("too short"))
	assert.ErrorContains(t, err, "32 bytes")
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer(testKey(7))
	require.NoError(t, err)
	for _, code := range []string{"000000", "000123", "482913", "999999"} {
		sealed, err := s.Seal(context.Background(), code)
		require.NoError(t, err)
		got, err := s.Unseal(context.Background(), sealed)
		require.NoError(t, err)
		assert.Equal(t, code, got)
	}
}

func TestSealer_NonceIsFresh(t *testing.T) {
	s, err := NewSealer(testKey(7))
	require.NoError(t, err)
	a, err := s.Seal(context.Background(), "123456")
	require.NoError(t, err)
	b, err := s.Seal(context.Background(), "123456")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_WrongKey(t *testing.T) {
	a, _ := NewSealer(testKey(1))
	b, _ := NewSealer(testKey(2))
	sealed, err := a.Seal(context.Background(), "123456")
	require.NoError(t, err)
	_, err = b.Unseal(context.Background(), sealed)
	assert.True(t, errors.Is(err, domain.ErrDecryption))
}

func TestSealer_Tampered(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	sealed, err := s.Seal(context.Background(), "123456")
	require.NoError(t, err)
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0x01
	_, err = s.Unseal(context.Background(), base64.StdEncoding.EncodeToString(raw))
	assert.True(t, errors.Is(err, domain.ErrDecryption))
}

func TestSealer_Malformed(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	for _, blob := range []string{"%%%", "", base64.StdEncoding.EncodeToString([]byte{9, 1, 2, 3})} {
		_, err := s.Unseal(context.Background(), blob)
		assert.True(t, errors.Is(err, domain.ErrDecryption), "blob %q", blob)
	}
}

func TestSealer_CancelledContext(t *testing.T) {
	s, _ := NewSealer(testKey(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Seal(ctx, "123456")
	assert.True(t, errors.Is(err, domain.ErrEncryption))
	assert.True(t, errors.Is(err, context.Canceled))
}
