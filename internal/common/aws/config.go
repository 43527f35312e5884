package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

const defaultRegion = "us-east-1"

// LoadConfig resolves SDK configuration for region. Static credentials are
// used when both keys are set; otherwise the default provider chain applies.
func LoadConfig(ctx context.Context, region, accessKey, secretKey string) (awssdk.Config, error) {
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("failed to load aws config: %w", err)
	}
	return cfg, nil
}
