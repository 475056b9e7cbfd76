// Package store persists enriched filing records and backs the lookup cache.
package store

import (
	"context"
	"time"

	"github.com/sells-group/filings-cli/internal/model"
)

// Store is the persistence gateway for the enrichment pipeline. Records are
// keyed by (tenant_id, case_number); UpsertRecord overwrites all mutable
// fields on conflict. The Cache* methods back the kv lookup cache.
type Store interface {
	// Records
	UpsertRecord(ctx context.Context, tenantID string, rec model.EnrichedRecord) error
	ExistingCaseNumbers(ctx context.Context, tenantID string, caseNumbers []string) (map[string]bool, error)

	// KV cache backing
	CacheGet(ctx context.Context, key string) ([]byte, bool, error)
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CacheDelete(ctx context.Context, key string) (bool, error)
	CacheExists(ctx context.Context, key string) (bool, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
