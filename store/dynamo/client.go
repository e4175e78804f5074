package dynamostore

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// NewClient loads the default AWS configuration and returns a DynamoDB
// client. A non-empty endpoint targets a local emulator.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	var loadOpts []func(*config.LoadOptions) error
	if region = strings.TrimSpace(region); region != "" {
		loadOpts = append(loadOpts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("dynamostore: load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint = strings.TrimSpace(endpoint); endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
