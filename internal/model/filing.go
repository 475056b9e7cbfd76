// Package model defines the core data shapes shared across the enrichment pipeline.
package model

import "time"

// RawFilingRecord is a filing as produced by a source adapter. Field names
// are already normalized at the adapter boundary; case numbers are NOT
// guaranteed unique by the producer.
type RawFilingRecord struct {
	CaseNumber  string    `json:"case_number"`
	FilingDate  time.Time `json:"filing_date"`
	DocType     string    `json:"doc_type"`
	Subdivision string    `json:"subdivision,omitempty"`
	Section     string    `json:"section,omitempty"`
	Block       string    `json:"block,omitempty"`
	Lot         string    `json:"lot,omitempty"`
	Address     string    `json:"address,omitempty"`
	Grantor     string    `json:"grantor,omitempty"`
	Grantee     string    `json:"grantee,omitempty"`
	OwnerName   string    `json:"owner_name,omitempty"`
}

// LegalDescription is the normalized, immutable subset of a RawFilingRecord
// that identifies the filing and its parcel in recorded-filing terms.
type LegalDescription struct {
	CaseNumber  string    `json:"case_number"`
	FilingDate  time.Time `json:"filing_date"`
	DocType     string    `json:"doc_type"`
	Subdivision string    `json:"subdivision,omitempty"`
	Section     string    `json:"section,omitempty"`
	Block       string    `json:"block,omitempty"`
	Lot         string    `json:"lot,omitempty"`
}

// Legal derives the LegalDescription for a raw record.
func (r RawFilingRecord) Legal() LegalDescription {
	return LegalDescription{
		CaseNumber:  r.CaseNumber,
		FilingDate:  r.FilingDate,
		DocType:     r.DocType,
		Subdivision: r.Subdivision,
		Section:     r.Section,
		Block:       r.Block,
		Lot:         r.Lot,
	}
}

// Owner returns the best available owner name for matching: the explicit
// owner field when present, otherwise the grantor.
func (r RawFilingRecord) Owner() string {
	if r.OwnerName != "" {
		return r.OwnerName
	}
	return r.Grantor
}

// ResolvedAddress is the outcome of address resolution for one record.
// Numeric fields are pointers; nil means the input data was missing and the
// value was left unknown rather than guessed. LTV is a ratio in [0, 1].
type ResolvedAddress struct {
	CanonicalAddress string   `json:"canonical_address,omitempty"`
	ParcelID         string   `json:"parcel_id,omitempty"`
	OwnerName        string   `json:"owner_name,omitempty"`
	MarketValue      *float64 `json:"market_value,omitempty"`
	LoanBalance      *float64 `json:"loan_balance,omitempty"`
	AvailableEquity  *float64 `json:"available_equity,omitempty"`
	LTV              *float64 `json:"ltv,omitempty"`
	ResolutionSource string   `json:"resolution_source,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// EnrichedRecord is the unit of persistence. Its identity is CaseNumber;
// re-enrichment produces a new EnrichedRecord that overwrites the stored one.
type EnrichedRecord struct {
	Legal      LegalDescription `json:"legal"`
	Address    ResolvedAddress  `json:"address"`
	Summary    string           `json:"summary,omitempty"`
	EnrichedAt time.Time        `json:"enriched_at"`
}

// Float64 returns a pointer to v, for populating nullable numeric fields.
func Float64(v float64) *float64 { return &v }
