package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identifies the backend calling the OTP API.
type Claims struct {
	Caller string `json:"caller,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks RS256 bearer tokens against a public key. Tokens are
// minted by the calling platform; this service never signs.
type Verifier struct {
	publicKey *rsa.PublicKey
}

func NewVerifier(publicKeyPath string) (*Verifier, error) {
	pubBytes, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &Verifier{publicKey: pubKey}, nil
}

func NewVerifierFromKey(pub *rsa.PublicKey) *Verifier {
	return &Verifier{publicKey: pub}
}

func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// CallerName returns the caller claim, falling back to the standard subject.
func (c *Claims) CallerName() string {
	if c.Caller != "" {
		return c.Caller
	}
	return c.RegisteredClaims.Subject
}
