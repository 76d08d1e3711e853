package app

import (
	"context"
	"errors"
	"fmt"

	"postline/internal/config"
	"postline/internal/repo"
)

// ResolveAgencyAndConfig picks the active agency and ensures a stored config
// exists, seeding defaults if missing. It prefers the override, then the
// workspace config file's agency id.
func ResolveAgencyAndConfig(ctx context.Context, workspace, agencyOverride string, r repo.Repo) (string, *config.Config, error) {
	agencyID := agencyOverride
	fileCfg, fileErr := config.LoadOptional(workspace)
	if agencyID == "" && fileErr == nil && fileCfg != nil {
		agencyID = fileCfg.Agency.ID
	}
	if agencyID == "" {
		return "", nil, fmt.Errorf("agency not specified; use --agency or run 'pl init'")
	}
	cfg, err := r.GetAgencyConfig(ctx, agencyID)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			return "", nil, err
		}
		seed := fileCfg
		if seed == nil {
			seed = config.Default(agencyID)
		}
		if err := r.UpsertAgencyConfig(ctx, agencyID, seed); err != nil {
			return "", nil, fmt.Errorf("seed agency config: %w", err)
		}
		cfg = seed
	}
	cfg.Agency.ID = agencyID
	return agencyID, cfg, nil
}
