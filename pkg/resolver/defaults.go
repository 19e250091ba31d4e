package resolver

import "verre/pkg/model"

// DefaultRegistries is the compiled-in registry pair used when the caller
// configures none. Overridable per call through ResolverConfig.
func DefaultRegistries() []model.VerifiablePublicRegistry {
	return []model.VerifiablePublicRegistry{
		{
			ID:         "vpr:verana:mainnet",
			BaseURLs:   []string{"https://api.registry.verana.network"},
			Production: true,
		},
		{
			ID:         "vpr:verana:testnet",
			BaseURLs:   []string{"https://api.testnet.registry.verana.network"},
			Production: false,
		},
	}
}
