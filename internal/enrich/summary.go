package enrich

import (
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sells-group/filings-cli/internal/model"
)

// summaryTmpl renders the one-paragraph description stored with each
// record. Sections render only when their fields resolved.
var summaryTmpl = template.Must(template.New("summary").Parse(strings.TrimSpace(`
{{.DocType}} filing {{.CaseNumber}}{{if .FilingDate}} recorded {{.FilingDate}}{{end}}.
{{- if .Address}} Property at {{.Address}}{{if .Owner}}, owned by {{.Owner}}{{end}}.{{end}}
{{- if .Equity}} Estimated equity {{.Equity}}{{if .LTV}} at {{.LTV}} LTV{{end}}.{{end}}
{{- if .Error}} Resolution note: {{.Error}}.{{end}}
`)))

type summaryData struct {
	DocType    string
	CaseNumber string
	FilingDate string
	Address    string
	Owner      string
	Equity     string
	LTV        string
	Error      string
}

// summarize renders the summary text for an enriched record.
func summarize(rec model.EnrichedRecord) string {
	data := summaryData{
		DocType:    orUnknown(rec.Legal.DocType),
		CaseNumber: rec.Legal.CaseNumber,
		Address:    rec.Address.CanonicalAddress,
		Owner:      rec.Address.OwnerName,
		Error:      rec.Address.Error,
	}
	if !rec.Legal.FilingDate.IsZero() {
		data.FilingDate = rec.Legal.FilingDate.Format("2006-01-02")
	}
	if rec.Address.AvailableEquity != nil {
		data.Equity = formatUSD(*rec.Address.AvailableEquity)
	}
	if rec.Address.LTV != nil {
		data.LTV = formatPercent(*rec.Address.LTV)
	}

	var b strings.Builder
	if err := summaryTmpl.Execute(&b, data); err != nil {
		return ""
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unrecorded"
	}
	return s
}

var english = message.NewPrinter(language.AmericanEnglish)

func formatUSD(v float64) string {
	return english.Sprintf("$%v", number.Decimal(v, number.MaxFractionDigits(0)))
}

func formatPercent(ratio float64) string {
	return english.Sprintf("%v%%", number.Decimal(ratio*100, number.MaxFractionDigits(1)))
}
