package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
)

// enrichRecord resolves one filing. Filings with a scraped address go
// straight through the resolution pipeline; the rest fall back to the
// parcel matcher, whose situs address then feeds the pipeline for the
// financial fields. Resolution never fails the record, it annotates it.
func (o *Orchestrator) enrichRecord(ctx context.Context, rec model.RawFilingRecord) model.EnrichedRecord {
	var resolved model.ResolvedAddress

	switch {
	case rec.Address != "":
		resolved = o.resolver.Enrich(ctx, rec.Address)

	case o.matcher != nil:
		resolved = o.matchParcel(ctx, rec)

	default:
		resolved = model.ResolvedAddress{Error: "no address"}
	}

	enriched := model.EnrichedRecord{
		Legal:      rec.Legal(),
		Address:    resolved,
		EnrichedAt: time.Now().UTC(),
	}
	enriched.Summary = summarize(enriched)
	return enriched
}

func (o *Orchestrator) matchParcel(ctx context.Context, rec model.RawFilingRecord) model.ResolvedAddress {
	m, err := o.matcher.Match(ctx, rec)
	if err != nil {
		zap.L().Warn("enrich: parcel match failed",
			zap.String("case_number", rec.CaseNumber),
			zap.Error(err))
		return model.ResolvedAddress{Error: "no match"}
	}
	if m == nil {
		return model.ResolvedAddress{Error: "no match"}
	}

	source := "parcel_match:" + m.Strategy
	situs := m.Candidate.Address()
	if situs == "" {
		return model.ResolvedAddress{
			ParcelID:         m.Candidate.AccountNumber,
			OwnerName:        m.Candidate.OwnerName,
			ResolutionSource: source,
		}
	}

	// The matched situs address unlocks the property lookup; the parcel
	// identity from the match wins over whatever the lookup returns.
	resolved := o.resolver.Enrich(ctx, situs)
	resolved.ParcelID = m.Candidate.AccountNumber
	resolved.OwnerName = m.Candidate.OwnerName
	resolved.ResolutionSource = source
	if resolved.CanonicalAddress == "" {
		resolved.CanonicalAddress = situs
	}
	return resolved
}
