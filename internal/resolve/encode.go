package resolve

import (
	"regexp"
	"strings"

	"github.com/sells-group/filings-cli/pkg/propdata"
)

var trailingZipRe = regexp.MustCompile(`(\d{5})(?:-\d{4})?\s*$`)

// encodeQueries builds the provider query encodings for a canonical
// address, most specific first. Providers index addresses differently;
// an address that misses under one encoding regularly hits under
// another, so all three are worth trying.
func encodeQueries(canonical string) []propdata.Query {
	queries := []propdata.Query{
		{Encoding: propdata.EncCombined, Combined: canonical},
	}

	street, locality := splitStreet(canonical)
	if street != "" && locality != "" {
		queries = append(queries, propdata.Query{
			Encoding: propdata.EncSplit,
			Street:   street,
			Locality: locality,
		})

		city := cityOf(locality)
		zip := zipOf(canonical)
		if city != "" && zip != "" {
			queries = append(queries, propdata.Query{
				Encoding: propdata.EncComponents,
				Street:   street,
				City:     city,
				Zip:      zip,
			})
		}
	}

	return queries
}

// splitStreet cuts a one-line address at the first comma into street and
// locality halves.
func splitStreet(address string) (street, locality string) {
	i := strings.Index(address, ",")
	if i < 0 {
		return strings.TrimSpace(address), ""
	}
	return strings.TrimSpace(address[:i]), strings.TrimSpace(address[i+1:])
}

// cityOf takes the first comma-separated segment of the locality, which
// in a canonical address is the city name.
func cityOf(locality string) string {
	if i := strings.Index(locality, ","); i >= 0 {
		locality = locality[:i]
	}
	return strings.TrimSpace(locality)
}

// zipOf extracts the trailing ZIP from an address, without any +4.
func zipOf(address string) string {
	m := trailingZipRe.FindStringSubmatch(address)
	if m == nil {
		return ""
	}
	return m[1]
}
