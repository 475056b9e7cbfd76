package model

// PolicyConfig is a per-tenant geographic allow-list. A tenant with no
// PolicyConfig is unrestricted.
type PolicyConfig struct {
	TenantID      string   `json:"tenant_id" yaml:"tenant_id"`
	AllowedZips   []string `json:"allowed_zips,omitempty" yaml:"allowed_zips"`
	AllowedCities []string `json:"allowed_cities,omitempty" yaml:"allowed_cities"`
}
