package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

const DefaultTable = "ingest_claims"

// claimRecord is bound to the configured table at query time through
// ModelTableExpr; the tag only names the default.
type claimRecord struct {
	bun.BaseModel `bun:"table:ingest_claims,alias:ic"`

	ClaimKey  string     `bun:"claim_key,pk"`
	Status    string     `bun:"status,notnull"`
	Owner     string     `bun:"owner,notnull"`
	CreatedAt time.Time  `bun:"created_at,notnull"`
	ExpiresAt *time.Time `bun:"expires_at,nullzero"`
	UpdatedAt time.Time  `bun:"updated_at,notnull"`
}
