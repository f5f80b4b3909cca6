package jwtinfra

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, key *rsa.PrivateKey, claims *Claims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func validClaims() *Claims {
	return &Claims{
		Caller: "checkout",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestNewVerifier_ReadsPEM(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}), 0600))

	v, err := NewVerifier(path)
	require.NoError(t, err)

	claims, err := v.Verify(sign(t, key, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "checkout", claims.CallerName())
}

func TestNewVerifier_MissingFile(t *testing.T) {
	_, err := NewVerifier(filepath.Join(t.TempDir(), "nope.pem"))
	assert.ErrorContains(t, err, "read public key")
}

func TestVerify_Rejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v := NewVerifierFromKey(&key.PublicKey)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	hs, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("secret"))
	require.NoError(t, err)

	cases := map[string]string{
		"garbage":   "not-a-token",
		"wrong key": sign(t, other, validClaims()),
		"expired":   sign(t, key, expired),
		"no expiry": sign(t, key, noExpiry),
		"hmac alg":  hs,
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(tok)
			assert.Error(t, err)
		})
	}
}

func TestCallerName_FallsBackToSubject(t *testing.T) {
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "billing"}}
	assert.Equal(t, "billing", c.CallerName())
}
