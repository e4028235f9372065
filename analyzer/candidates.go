package analyzer

import (
	"errors"

	"nutriscan/config"
)

// ErrNotConfigured is returned when no provider key is available for any candidate.
var ErrNotConfigured = errors.New("API keys not configured")

// stubKey stands in for a real key when the stub provider is active.
const stubKey = "stub"

// Route selects the candidate preference order.
type Route string

const (
	// RouteUpload prefers family A (every configured variant), then family B.
	RouteUpload Route = "upload"
	// RouteCamera prefers family B, then the first family A variant.
	RouteCamera Route = "camera"
)

type Family string

const (
	FamilyA Family = "A"
	FamilyB Family = "B"
)

// Candidate is one (model, key) pair the analyzer may try.
type Candidate struct {
	Family Family
	Model  string
	APIKey string
}

// BuildCandidates returns the ordered candidate list for route. A model whose
// family has no key falls back to the shared key and is skipped when neither
// is set.
func BuildCandidates(cfg *config.Config, route Route) ([]Candidate, error) {
	type slot struct {
		family Family
		model  string
	}

	var order []slot
	addAll := func(f Family, models []string) {
		for _, m := range models {
			order = append(order, slot{f, m})
		}
	}

	switch route {
	case RouteCamera:
		addAll(FamilyB, cfg.FamilyBModels)
		if len(cfg.FamilyAModels) > 0 {
			order = append(order, slot{FamilyA, cfg.FamilyAModels[0]})
		}
	default:
		addAll(FamilyA, cfg.FamilyAModels)
		addAll(FamilyB, cfg.FamilyBModels)
	}

	candidates := make([]Candidate, 0, len(order))
	for _, s := range order {
		key := keyFor(cfg, s.family)
		if key == "" {
			continue
		}
		candidates = append(candidates, Candidate{Family: s.family, Model: s.model, APIKey: key})
	}

	if len(candidates) == 0 {
		return nil, ErrNotConfigured
	}
	return candidates, nil
}

func keyFor(cfg *config.Config, f Family) string {
	key := cfg.SharedKey
	switch f {
	case FamilyA:
		if cfg.FamilyAKey != "" {
			key = cfg.FamilyAKey
		}
	case FamilyB:
		if cfg.FamilyBKey != "" {
			key = cfg.FamilyBKey
		}
	}
	if key == "" && cfg.Provider == config.ProviderStub {
		key = stubKey
	}
	return key
}
