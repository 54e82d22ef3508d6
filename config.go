package appenv

import "github.com/giantswarm/appenv/internal/core"

// registryConfig holds configuration for a Registry. This unexported type
// wraps core.Config via embedding, keeping internal/core types out of the
// public API signature while avoiding field-by-field duplication.
type registryConfig struct {
	core.Config
}

// toCoreConfig returns the embedded core.Config.
func (c registryConfig) toCoreConfig() core.Config {
	return c.Config
}
