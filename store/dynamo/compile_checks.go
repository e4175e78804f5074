package dynamostore

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/goliatone/go-ingest/core"
)

var (
	_ core.IdempotencyStore = (*ClaimStore)(nil)
	_ core.ClaimReader      = (*ClaimStore)(nil)
	_ API                   = (*dynamodb.Client)(nil)
)
