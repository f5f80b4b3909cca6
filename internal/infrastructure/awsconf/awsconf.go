package awsconf

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/go-otp-service/internal/config"
)

// Load builds the shared AWS configuration. Static credentials are used only
// when AWS_ACCESS_KEY_ID is set; otherwise the default provider chain applies.
func Load(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.AWSRegion),
	}

	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}

	// LocalStack: route every service client to the local endpoint.
	if cfg.AWSEndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
	}
	return awsCfg, nil
}
