// Package ingest is the composition root of the event ingestion handler. It
// wires classification, deduplicated object processing and application event
// dispatch behind a single Handle call per inbound event.
package ingest

import "github.com/goliatone/go-ingest/core"

type Config = core.Config

type Response = core.Response

type Envelope = core.Envelope

type IdempotencyStore = core.IdempotencyStore

type ObjectReader = core.ObjectReader

func DefaultConfig() Config {
	return core.DefaultConfig()
}
