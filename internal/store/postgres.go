package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/db"
	"github.com/sells-group/filings-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access (e.g., the parcel index).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enriched_records (
	id                TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	tenant_id         TEXT NOT NULL,
	case_number       TEXT NOT NULL,
	filing_date       TIMESTAMPTZ,
	doc_type          TEXT,
	subdivision       TEXT,
	section           TEXT,
	block             TEXT,
	lot               TEXT,
	canonical_address TEXT,
	parcel_id         TEXT,
	owner_name        TEXT,
	market_value      DOUBLE PRECISION,
	loan_balance      DOUBLE PRECISION,
	available_equity  DOUBLE PRECISION,
	ltv               DOUBLE PRECISION,
	resolution_source TEXT,
	resolution_error  TEXT,
	summary           TEXT,
	enriched_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, case_number)
);

CREATE INDEX IF NOT EXISTS idx_enriched_records_tenant ON enriched_records(tenant_id);
CREATE INDEX IF NOT EXISTS idx_enriched_records_filing_date ON enriched_records(filing_date);

CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);

CREATE TABLE IF NOT EXISTS parcels (
	account_number TEXT PRIMARY KEY,
	owner_name     TEXT,
	legal_text     TEXT,
	subdivision    TEXT,
	block          TEXT,
	lot            TEXT,
	situs_number   TEXT,
	situs_street   TEXT,
	situs_city     TEXT,
	situs_zip      TEXT,
	geom           BYTEA
);

CREATE INDEX IF NOT EXISTS idx_parcels_owner ON parcels(owner_name);
CREATE INDEX IF NOT EXISTS idx_parcels_subdivision ON parcels(subdivision);
`

const upsertRecordSQL = `
INSERT INTO enriched_records (
	id, tenant_id, case_number, filing_date, doc_type,
	subdivision, section, block, lot,
	canonical_address, parcel_id, owner_name,
	market_value, loan_balance, available_equity, ltv,
	resolution_source, resolution_error, summary,
	enriched_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, now())
ON CONFLICT (tenant_id, case_number) DO UPDATE SET
	filing_date       = EXCLUDED.filing_date,
	doc_type          = EXCLUDED.doc_type,
	subdivision       = EXCLUDED.subdivision,
	section           = EXCLUDED.section,
	block             = EXCLUDED.block,
	lot               = EXCLUDED.lot,
	canonical_address = EXCLUDED.canonical_address,
	parcel_id         = EXCLUDED.parcel_id,
	owner_name        = EXCLUDED.owner_name,
	market_value      = EXCLUDED.market_value,
	loan_balance      = EXCLUDED.loan_balance,
	available_equity  = EXCLUDED.available_equity,
	ltv               = EXCLUDED.ltv,
	resolution_source = EXCLUDED.resolution_source,
	resolution_error  = EXCLUDED.resolution_error,
	summary           = EXCLUDED.summary,
	enriched_at       = EXCLUDED.enriched_at,
	updated_at        = now()`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) UpsertRecord(ctx context.Context, tenantID string, rec model.EnrichedRecord) error {
	enrichedAt := rec.EnrichedAt
	if enrichedAt.IsZero() {
		enrichedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, upsertRecordSQL,
		uuid.New().String(), tenantID, rec.Legal.CaseNumber, rec.Legal.FilingDate, rec.Legal.DocType,
		rec.Legal.Subdivision, rec.Legal.Section, rec.Legal.Block, rec.Legal.Lot,
		nilIfEmpty(rec.Address.CanonicalAddress), nilIfEmpty(rec.Address.ParcelID), nilIfEmpty(rec.Address.OwnerName),
		rec.Address.MarketValue, rec.Address.LoanBalance, rec.Address.AvailableEquity, rec.Address.LTV,
		nilIfEmpty(rec.Address.ResolutionSource), nilIfEmpty(rec.Address.Error), nilIfEmpty(rec.Summary),
		enrichedAt,
	)
	return eris.Wrapf(err, "postgres: upsert record %s", rec.Legal.CaseNumber)
}

func (s *PostgresStore) ExistingCaseNumbers(ctx context.Context, tenantID string, caseNumbers []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(caseNumbers))
	if len(caseNumbers) == 0 {
		return existing, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT case_number FROM enriched_records WHERE tenant_id = $1 AND case_number = ANY($2)`,
		tenantID, caseNumbers,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: existing case numbers")
	}
	defer rows.Close()

	for rows.Next() {
		var cn string
		if err := rows.Scan(&cn); err != nil {
			return nil, eris.Wrap(err, "postgres: scan case number")
		}
		existing[cn] = true
	}
	return existing, eris.Wrap(rows.Err(), "postgres: existing case numbers iterate")
}

func (s *PostgresStore) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_cache WHERE key = $1 AND expires_at > now()`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, eris.Wrap(err, "postgres: cache get")
	}
	return value, true, nil
}

func (s *PostgresStore) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_cache (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = $2, expires_at = $3`,
		key, value, expiresAt,
	)
	return eris.Wrap(err, "postgres: cache set")
}

func (s *PostgresStore) CacheDelete(ctx context.Context, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_cache WHERE key = $1`, key)
	if err != nil {
		return false, eris.Wrap(err, "postgres: cache delete")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CacheExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM kv_cache WHERE key = $1 AND expires_at > now())`,
		key,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: cache exists")
}

// DeleteExpiredCache removes expired kv_cache rows. The primary store relies
// on its own expiry guard for reads; this bounds table growth.
func (s *PostgresStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
