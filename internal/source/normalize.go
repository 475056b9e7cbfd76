package source

import (
	"strings"
	"time"

	"github.com/sells-group/filings-cli/internal/model"
)

// keyAliases maps the field names producers actually emit to canonical
// names. Lookup keys are lowercased with separators stripped, so
// "caseNumber", "case_number", and "CASE-NUMBER" all land on the same
// alias.
var keyAliases = map[string]string{
	"casenumber":       "case_number",
	"caseno":           "case_number",
	"fileno":           "case_number",
	"filenumber":       "case_number",
	"instrumentnumber": "case_number",
	"filingdate":       "filing_date",
	"datefiled":        "filing_date",
	"recordeddate":     "filing_date",
	"recorddate":       "filing_date",
	"doctype":          "doc_type",
	"documenttype":     "doc_type",
	"type":             "doc_type",
	"subdivision":      "subdivision",
	"subdiv":           "subdivision",
	"legalsubdivision": "subdivision",
	"section":          "section",
	"sec":              "section",
	"block":            "block",
	"blk":              "block",
	"lot":              "lot",
	"address":          "address",
	"propertyaddress":  "address",
	"situsaddress":     "address",
	"grantor":          "grantor",
	"grantee":          "grantee",
	"ownername":        "owner_name",
	"owner":            "owner_name",
}

// dateLayouts covers the filing-date formats seen across producers.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"2006-01-02 15:04:05",
}

func canonicalKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	alias, ok := keyAliases[b.String()]
	if !ok {
		return ""
	}
	return alias
}

// NormalizeRecord converts one producer row into a RawFilingRecord.
// Unknown keys are dropped; an unparseable filing date is left zero.
func NormalizeRecord(row map[string]any) model.RawFilingRecord {
	var rec model.RawFilingRecord
	for key, val := range row {
		str, ok := asString(val)
		if !ok {
			continue
		}
		str = strings.TrimSpace(str)
		if str == "" {
			continue
		}
		switch canonicalKey(key) {
		case "case_number":
			rec.CaseNumber = str
		case "filing_date":
			rec.FilingDate = parseDate(str)
		case "doc_type":
			rec.DocType = str
		case "subdivision":
			rec.Subdivision = str
		case "section":
			rec.Section = str
		case "block":
			rec.Block = str
		case "lot":
			rec.Lot = str
		case "address":
			rec.Address = str
		case "grantor":
			rec.Grantor = str
		case "grantee":
			rec.Grantee = str
		case "owner_name":
			rec.OwnerName = str
		}
	}
	return rec
}

func asString(val any) (string, bool) {
	s, ok := val.(string)
	return s, ok
}

func parseDate(s string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
