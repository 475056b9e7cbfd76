package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Records ---

func TestSQLite_UpsertRecord_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, st.UpsertRecord(ctx, "tenant-a", rec))

	// Re-enrich the same case with fresher data.
	rec.Address.CanonicalAddress = "125 MAIN ST, HOUSTON, TX 77001"
	rec.Summary = "LIS PENDENS filing 2026-0001, re-enriched."
	require.NoError(t, st.UpsertRecord(ctx, "tenant-a", rec))

	var count int
	err := st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enriched_records WHERE tenant_id = ? AND case_number = ?`,
		"tenant-a", "2026-0001",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var address, summary string
	err = st.db.QueryRowContext(ctx,
		`SELECT canonical_address, summary FROM enriched_records WHERE tenant_id = ? AND case_number = ?`,
		"tenant-a", "2026-0001",
	).Scan(&address, &summary)
	require.NoError(t, err)
	assert.Equal(t, "125 MAIN ST, HOUSTON, TX 77001", address)
	assert.Equal(t, "LIS PENDENS filing 2026-0001, re-enriched.", summary)
}

func TestSQLite_UpsertRecord_TenantsIsolated(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, st.UpsertRecord(ctx, "tenant-a", rec))
	require.NoError(t, st.UpsertRecord(ctx, "tenant-b", rec))

	var count int
	err := st.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enriched_records WHERE case_number = ?`, "2026-0001",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSQLite_UpsertRecord_UnknownFieldsStoredAsNull(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	rec.Address.ParcelID = ""
	rec.Address.ResolutionSource = ""
	require.NoError(t, st.UpsertRecord(ctx, "tenant-a", rec))

	var parcelID, source *string
	err := st.db.QueryRowContext(ctx,
		`SELECT parcel_id, resolution_source FROM enriched_records WHERE tenant_id = ? AND case_number = ?`,
		"tenant-a", "2026-0001",
	).Scan(&parcelID, &source)
	require.NoError(t, err)
	assert.Nil(t, parcelID)
	assert.Nil(t, source)
}

func TestSQLite_ExistingCaseNumbers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, st.UpsertRecord(ctx, "tenant-a", rec))

	existing, err := st.ExistingCaseNumbers(ctx, "tenant-a", []string{"2026-0001", "2026-0002"})
	require.NoError(t, err)
	assert.True(t, existing["2026-0001"])
	assert.False(t, existing["2026-0002"])

	// Other tenants do not see it.
	existing, err = st.ExistingCaseNumbers(ctx, "tenant-b", []string{"2026-0001"})
	require.NoError(t, err)
	assert.False(t, existing["2026-0001"])
}

// --- KV cache ---

func TestSQLite_Cache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "k", []byte("v"), time.Hour))

	value, found, err := st.CacheGet(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)
}

func TestSQLite_Cache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Set with already-expired TTL.
	require.NoError(t, st.CacheSet(ctx, "k", []byte("v"), -time.Hour))

	_, found, err := st.CacheGet(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := st.CacheExists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSQLite_Cache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "k", []byte("original"), time.Hour))
	require.NoError(t, st.CacheSet(ctx, "k", []byte("updated"), time.Hour))

	value, found, err := st.CacheGet(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("updated"), value)
}

func TestSQLite_Cache_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "k", []byte("v"), time.Hour))

	deleted, err := st.CacheDelete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = st.CacheDelete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)

	// Migrate already ran in newTestSQLiteStore; a second run must not error.
	require.NoError(t, st.Migrate(context.Background()))
}
