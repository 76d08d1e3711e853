package config

import (
	"context"
	"fmt"
)

// CountrySource serves the destination country list from the catalog. It
// satisfies the wizard's country provider; a nil or empty catalog reports
// an error so the session degrades instead of validating against nothing.
type CountrySource struct {
	Cfg *Config
}

func (s CountrySource) Countries(_ context.Context) ([]string, error) {
	if s.Cfg == nil || len(s.Cfg.Catalog.Countries) == 0 {
		return nil, fmt.Errorf("country catalog unavailable")
	}
	out := make([]string, len(s.Cfg.Catalog.Countries))
	copy(out, s.Cfg.Catalog.Countries)
	return out, nil
}
