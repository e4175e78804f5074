package redisstore

import "github.com/goliatone/go-ingest/core"

var (
	_ core.IdempotencyStore = (*ClaimStore)(nil)
	_ core.ClaimReader      = (*ClaimStore)(nil)
)
