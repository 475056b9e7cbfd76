package enrich

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/filings-cli/internal/model"
)

func TestSummarizeFullRecord(t *testing.T) {
	rec := model.EnrichedRecord{
		Legal: model.LegalDescription{
			CaseNumber: "2026-0117",
			DocType:    "LIS PENDENS",
			FilingDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		Address: model.ResolvedAddress{
			CanonicalAddress: "101 MAPLE ST, CYPRESS, TX 77429",
			OwnerName:        "SMITH JOHN",
			AvailableEquity:  model.Float64(117745),
			LTV:              model.Float64(0.6294),
		},
	}

	got := summarize(rec)

	assert.Contains(t, got, "LIS PENDENS filing 2026-0117 recorded 2026-03-14.")
	assert.Contains(t, got, "Property at 101 MAPLE ST, CYPRESS, TX 77429, owned by SMITH JOHN.")
	assert.Contains(t, got, "Estimated equity $117,745 at 62.9% LTV.")
	assert.NotContains(t, got, "Resolution note")
}

func TestSummarizeMinimalRecord(t *testing.T) {
	rec := model.EnrichedRecord{
		Legal:   model.LegalDescription{CaseNumber: "2026-0118"},
		Address: model.ResolvedAddress{Error: "no address"},
	}

	got := summarize(rec)

	assert.Contains(t, got, "Unrecorded filing 2026-0118.")
	assert.Contains(t, got, "Resolution note: no address.")
	assert.NotContains(t, got, "Property at")
	assert.NotContains(t, got, "Estimated equity")
}

func TestFormatUSDGroupsThousands(t *testing.T) {
	assert.Equal(t, "$1,250,000", formatUSD(1250000))
	assert.Equal(t, "$0", formatUSD(0))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "75%", formatPercent(0.75))
	assert.Equal(t, "62.9%", formatPercent(0.6294))
}
