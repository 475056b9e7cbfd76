package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/filings-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// single-operator use.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enriched_records (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	case_number       TEXT NOT NULL,
	filing_date       DATETIME,
	doc_type          TEXT,
	subdivision       TEXT,
	section           TEXT,
	block             TEXT,
	lot               TEXT,
	canonical_address TEXT,
	parcel_id         TEXT,
	owner_name        TEXT,
	market_value      REAL,
	loan_balance      REAL,
	available_equity  REAL,
	ltv               REAL,
	resolution_source TEXT,
	resolution_error  TEXT,
	summary           TEXT,
	enriched_at       DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	UNIQUE (tenant_id, case_number)
);

CREATE INDEX IF NOT EXISTS idx_enriched_records_tenant ON enriched_records(tenant_id);

CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertRecord(ctx context.Context, tenantID string, rec model.EnrichedRecord) error {
	now := time.Now().UTC()
	enrichedAt := rec.EnrichedAt
	if enrichedAt.IsZero() {
		enrichedAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enriched_records (
			id, tenant_id, case_number, filing_date, doc_type,
			subdivision, section, block, lot,
			canonical_address, parcel_id, owner_name,
			market_value, loan_balance, available_equity, ltv,
			resolution_source, resolution_error, summary,
			enriched_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, case_number) DO UPDATE SET
			filing_date       = excluded.filing_date,
			doc_type          = excluded.doc_type,
			subdivision       = excluded.subdivision,
			section           = excluded.section,
			block             = excluded.block,
			lot               = excluded.lot,
			canonical_address = excluded.canonical_address,
			parcel_id         = excluded.parcel_id,
			owner_name        = excluded.owner_name,
			market_value      = excluded.market_value,
			loan_balance      = excluded.loan_balance,
			available_equity  = excluded.available_equity,
			ltv               = excluded.ltv,
			resolution_source = excluded.resolution_source,
			resolution_error  = excluded.resolution_error,
			summary           = excluded.summary,
			enriched_at       = excluded.enriched_at,
			updated_at        = excluded.updated_at`,
		uuid.New().String(), tenantID, rec.Legal.CaseNumber, rec.Legal.FilingDate, rec.Legal.DocType,
		rec.Legal.Subdivision, rec.Legal.Section, rec.Legal.Block, rec.Legal.Lot,
		nilIfEmpty(rec.Address.CanonicalAddress), nilIfEmpty(rec.Address.ParcelID), nilIfEmpty(rec.Address.OwnerName),
		rec.Address.MarketValue, rec.Address.LoanBalance, rec.Address.AvailableEquity, rec.Address.LTV,
		nilIfEmpty(rec.Address.ResolutionSource), nilIfEmpty(rec.Address.Error), nilIfEmpty(rec.Summary),
		enrichedAt, now,
	)
	return eris.Wrapf(err, "sqlite: upsert record %s", rec.Legal.CaseNumber)
}

func (s *SQLiteStore) ExistingCaseNumbers(ctx context.Context, tenantID string, caseNumbers []string) (map[string]bool, error) {
	existing := make(map[string]bool, len(caseNumbers))
	if len(caseNumbers) == 0 {
		return existing, nil
	}

	query := `SELECT case_number FROM enriched_records WHERE tenant_id = ? AND case_number IN (?` +
		repeatPlaceholder(len(caseNumbers)-1) + `)`
	args := make([]any, 0, len(caseNumbers)+1)
	args = append(args, tenantID)
	for _, cn := range caseNumbers {
		args = append(args, cn)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: existing case numbers")
	}
	defer rows.Close()

	for rows.Next() {
		var cn string
		if err := rows.Scan(&cn); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan case number")
		}
		existing[cn] = true
	}
	return existing, eris.Wrap(rows.Err(), "sqlite: existing case numbers iterate")
}

func (s *SQLiteStore) CacheGet(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: cache get")
	}
	return value, true, nil
}

func (s *SQLiteStore) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_cache (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrap(err, "sqlite: cache set")
}

func (s *SQLiteStore) CacheDelete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key = ?`, key)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: cache delete")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) CacheExists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM kv_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UTC(),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: cache exists")
	}
	return true, nil
}

// repeatPlaceholder returns ", ?" repeated n times.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		out = append(out, ", ?"...)
	}
	return string(out)
}
