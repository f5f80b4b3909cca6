package kms

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-otp-service/internal/domain"
)

// API is the subset of the KMS client the sealer uses.
type API interface {
	Encrypt(ctx context.Context, in *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, in *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Sealer envelope-encrypts codes under a KMS key. Every call goes to KMS;
// nothing is cached between calls.
type Sealer struct {
	client API
	keyID  string
}

func NewClient(awsCfg aws.Config) *kms.Client {
	return kms.NewFromConfig(awsCfg)
}

func NewSealer(client API, keyID string) *Sealer {
	return &Sealer{client: client, keyID: keyID}
}

// Seal encrypts code and returns the base64 ciphertext blob.
func (s *Sealer) Seal(ctx context.Context, code string) (string, error) {
	out, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(s.keyID),
		Plaintext: []byte(code),
	})
	if err != nil {
		return "", fmt.Errorf("kms encrypt: %w: %w", domain.ErrEncryption, err)
	}
	return base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

// Unseal decodes and decrypts a blob produced by Seal.
func (s *Sealer) Unseal(ctx context.Context, sealed string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil || len(blob) == 0 {
		return "", fmt.Errorf("malformed ciphertext: %w", domain.ErrDecryption)
	}
	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: blob,
		KeyId:          aws.String(s.keyID),
	})
	if err != nil {
		return "", fmt.Errorf("kms decrypt: %w: %w", domain.ErrDecryption, err)
	}
	return string(out.Plaintext), nil
}
