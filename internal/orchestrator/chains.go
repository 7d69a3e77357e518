package orchestrator

import (
	"sort"

	"github.com/davidbz/verdant/internal/domain"
)

// ChainTable holds the static per-capability provider priority order plus an
// optional keyless universal fallback per capability. The table is built
// once at startup; concrete chains are computed per request from credential
// availability.
type ChainTable struct {
	specs     map[domain.Capability][]domain.ProviderSpec
	universal map[domain.Capability]string
}

// NewChainTable builds a table from provider specs and universal fallback
// names. Specs are ordered by ascending priority.
func NewChainTable(specs []domain.ProviderSpec, universal map[domain.Capability]string) *ChainTable {
	byCapability := make(map[domain.Capability][]domain.ProviderSpec)
	for _, spec := range specs {
		byCapability[spec.Capability] = append(byCapability[spec.Capability], spec)
	}

	for capability := range byCapability {
		ordered := byCapability[capability]
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority < ordered[j].Priority
		})
		byCapability[capability] = ordered
	}

	if universal == nil {
		universal = make(map[domain.Capability]string)
	}

	return &ChainTable{
		specs:     byCapability,
		universal: universal,
	}
}

// DefaultTable returns the production priority order: cheap credentialed
// providers first, hosted fallbacks after, and Pollinations as the keyless
// last resort for chat and image. Speech has no keyless fallback.
func DefaultTable() *ChainTable {
	return NewChainTable(
		[]domain.ProviderSpec{
			{Capability: domain.CapabilityChat, Name: "groq", Priority: 1, RequiresCredential: true},
			{Capability: domain.CapabilityChat, Name: "gemini", Priority: 2, RequiresCredential: true},
			{Capability: domain.CapabilityChat, Name: "echo", Priority: 3, RequiresCredential: true},

			{Capability: domain.CapabilityImage, Name: "gemini", Priority: 1, RequiresCredential: true},
			{Capability: domain.CapabilityImage, Name: "stablehorde", Priority: 2, RequiresCredential: true},

			{Capability: domain.CapabilitySpeech, Name: "elevenlabs", Priority: 1, RequiresCredential: true},
			{Capability: domain.CapabilitySpeech, Name: "googletts", Priority: 2, RequiresCredential: true},
		},
		map[domain.Capability]string{
			domain.CapabilityChat:  "pollinations",
			domain.CapabilityImage: "pollinations",
		},
	)
}

// Build computes the fallback chain for a capability: priority order,
// filtered by credential availability, deduplicated by name preserving the
// first occurrence. The result may be empty.
func (t *ChainTable) Build(capability domain.Capability, credentials map[string]bool) []domain.ProviderSpec {
	seen := make(map[string]struct{})
	chain := make([]domain.ProviderSpec, 0, len(t.specs[capability]))

	for _, spec := range t.specs[capability] {
		if spec.RequiresCredential && !credentials[spec.Name] {
			continue
		}
		if _, dup := seen[spec.Name]; dup {
			continue
		}
		seen[spec.Name] = struct{}{}
		chain = append(chain, spec)
	}

	return chain
}

// Universal returns the keyless fallback provider name for a capability, or
// empty when none is configured.
func (t *ChainTable) Universal(capability domain.Capability) string {
	return t.universal[capability]
}
