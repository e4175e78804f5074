// Package core contains the ingestion domain contracts shared by every other
// package: event envelopes, idempotency claims, collaborator interfaces, the
// error taxonomy and configuration. Adapters depend on core; core never
// depends on a storage or transport adapter.
package core
