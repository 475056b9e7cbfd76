// Package policy decides whether an enriched record falls inside a
// tenant's service area.
package policy

import (
	"os"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/filings-cli/internal/model"
)

// zipRe matches the first 5-digit ZIP in an address, with an optional
// +4 suffix.
var zipRe = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)

// Filter holds the per-tenant allow-lists. A tenant with no entry is
// unrestricted.
type Filter struct {
	tenants map[string]model.PolicyConfig
}

// New builds a Filter from tenant configs. Later entries for the same
// tenant override earlier ones.
func New(configs []model.PolicyConfig) *Filter {
	tenants := make(map[string]model.PolicyConfig, len(configs))
	for _, c := range configs {
		tenants[c.TenantID] = c
	}
	return &Filter{tenants: tenants}
}

// LoadFile builds a Filter from a YAML file holding a list of tenant
// configs. An empty path yields a filter that allows everything.
func LoadFile(path string) (*Filter, error) {
	if path == "" {
		return New(nil), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "policy: read %s", path)
	}

	var doc struct {
		Tenants []model.PolicyConfig `yaml:"tenants"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "policy: parse %s", path)
	}

	zap.L().Info("policy: loaded tenant configs",
		zap.String("path", path),
		zap.Int("tenants", len(doc.Tenants)),
	)
	return New(doc.Tenants), nil
}

// Allow reports whether the resolved address is inside the tenant's
// service area. Unknown tenants pass. A configured tenant's record is
// allowed when its address's first 5-digit ZIP is on the allow-list, or
// when any allowed city name appears in the address. An address that
// cannot prove it is in the area is treated as outside it. The decision
// is deterministic for a given config and address.
func (f *Filter) Allow(tenantID string, addr model.ResolvedAddress) bool {
	cfg, ok := f.tenants[tenantID]
	if !ok {
		return true
	}
	if len(cfg.AllowedZips) == 0 && len(cfg.AllowedCities) == 0 {
		return true
	}
	return zipAllowed(cfg.AllowedZips, addr.CanonicalAddress) ||
		cityAllowed(cfg.AllowedCities, addr.CanonicalAddress)
}

func zipAllowed(allowed []string, address string) bool {
	m := zipRe.FindStringSubmatch(address)
	if m == nil {
		return false
	}
	for _, z := range allowed {
		if m[1] == z {
			return true
		}
	}
	return false
}

func cityAllowed(allowed []string, address string) bool {
	upper := strings.ToUpper(address)
	for _, city := range allowed {
		if city == "" {
			continue
		}
		if strings.Contains(upper, strings.ToUpper(city)) {
			return true
		}
	}
	return false
}
