package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/model"
)

func restrictedFilter() *Filter {
	return New([]model.PolicyConfig{{
		TenantID:      "tenant-a",
		AllowedZips:   []string{"77429", "77433"},
		AllowedCities: []string{"CYPRESS", "KATY"},
	}})
}

func TestAllowUnknownTenant(t *testing.T) {
	f := restrictedFilter()

	allowed := f.Allow("tenant-unconfigured", model.ResolvedAddress{
		CanonicalAddress: "1 ANY ST, NOWHERE, TX 00000",
	})
	assert.True(t, allowed)
}

func TestDenyOutsideArea(t *testing.T) {
	f := restrictedFilter()

	// ZIP 77001 is not allow-listed and HOUSTON is not an allowed city.
	allowed := f.Allow("tenant-a", model.ResolvedAddress{
		CanonicalAddress: "123 Main St, Houston, TX 77001",
	})
	assert.False(t, allowed)
}

func TestAllowByZip(t *testing.T) {
	f := restrictedFilter()

	allowed := f.Allow("tenant-a", model.ResolvedAddress{
		CanonicalAddress: "456 OAK LN, UNINCORPORATED, TX 77433",
	})
	assert.True(t, allowed)
}

func TestAllowByZipPlus4(t *testing.T) {
	f := restrictedFilter()

	allowed := f.Allow("tenant-a", model.ResolvedAddress{
		CanonicalAddress: "456 OAK LN, TX 77429-1234",
	})
	assert.True(t, allowed)
}

func TestAllowByCityWhenZipUnlisted(t *testing.T) {
	f := restrictedFilter()

	// The ZIP misses the list but the city name matches.
	allowed := f.Allow("tenant-a", model.ResolvedAddress{
		CanonicalAddress: "789 ELM DR, Cypress, TX 77064",
	})
	assert.True(t, allowed)
}

func TestDenyNoZipNoCity(t *testing.T) {
	f := restrictedFilter()

	allowed := f.Allow("tenant-a", model.ResolvedAddress{
		CanonicalAddress: "RURAL ROUTE 4",
	})
	assert.False(t, allowed)
}

func TestDenyEmptyAddress(t *testing.T) {
	f := restrictedFilter()
	assert.False(t, f.Allow("tenant-a", model.ResolvedAddress{}))
}

func TestAllowEmptyConfig(t *testing.T) {
	f := New([]model.PolicyConfig{{TenantID: "tenant-open"}})
	assert.True(t, f.Allow("tenant-open", model.ResolvedAddress{}))
}

func TestAllowDeterministic(t *testing.T) {
	f := restrictedFilter()
	addr := model.ResolvedAddress{CanonicalAddress: "123 Main St, Houston, TX 77001"}

	first := f.Allow("tenant-a", addr)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, f.Allow("tenant-a", addr))
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tenants:
  - tenant_id: tenant-a
    allowed_zips: ["77429"]
    allowed_cities: ["CYPRESS"]
`), 0o600))

	f, err := LoadFile(path)
	require.NoError(t, err)

	assert.True(t, f.Allow("tenant-a", model.ResolvedAddress{CanonicalAddress: "1 A ST, TX 77429"}))
	assert.False(t, f.Allow("tenant-a", model.ResolvedAddress{CanonicalAddress: "1 A ST, HOUSTON, TX 77001"}))
}

func TestLoadFileEmptyPath(t *testing.T) {
	f, err := LoadFile("")
	require.NoError(t, err)
	assert.True(t, f.Allow("anyone", model.ResolvedAddress{}))
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("/nonexistent/policy.yaml")
	assert.Error(t, err)
}
