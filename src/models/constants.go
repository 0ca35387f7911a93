package models

// Environment tags an API key for display and default-limit selection.
// It does not affect routing.
type Environment string

const (
	// EnvDevelopment identifies keys issued for local/test integrations
	EnvDevelopment Environment = "development"
	// EnvProduction identifies keys issued for live integrations
	EnvProduction Environment = "production"
)

// IsValid reports whether the environment is a known value
func (e Environment) IsValid() bool {
	return e == EnvDevelopment || e == EnvProduction
}

// Key value prefixes, fixed at generation time. Lookup is always exact-match
// on the full value.
const (
	KeyPrefixDevelopment = "rl_dev_"
	KeyPrefixProduction  = "rl_prod_"
)

// DefaultUsageLimit applies to keys created without an explicit limit
const DefaultUsageLimit = 100
