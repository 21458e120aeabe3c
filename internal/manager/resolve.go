package manager

import (
	"context"

	"hubd/pkg/types"
)

// preferences merges per-request overrides onto the server defaults. Only
// fields the caller left unset inherit the default.
func (m *Manager) preferences(override *types.ModelPreferences) types.ModelPreferences {
	prefs := m.defaults
	if override == nil {
		return prefs
	}
	if len(override.QuantizationPriority) > 0 {
		prefs.QuantizationPriority = override.QuantizationPriority
	}
	if len(override.DecoderPriority) > 0 {
		prefs.DecoderPriority = override.DecoderPriority
	}
	if override.DevicePreference != "" {
		prefs.DevicePreference = override.DevicePreference
	}
	if override.Subfolder != "" {
		prefs.Subfolder = override.Subfolder
	}
	if len(override.FileOverrides) > 0 {
		prefs.FileOverrides = override.FileOverrides
	}
	if override.MatchQuantAcrossRoles {
		prefs.MatchQuantAcrossRoles = true
	}
	return prefs
}

// Resolve produces the file manifest for a repository revision without
// touching the local cache contents.
func (m *Manager) Resolve(ctx context.Context, req types.ResolveRequest) (types.DiscoveryResult, error) {
	prefs := m.preferences(req.Preferences)
	m.log.Debug().Str("repo", req.RepoID).Str("prefs", prefs.Hash()).Msg("resolve")
	return m.engine.Discover(ctx, req.RepoID, req.Revision, prefs)
}

// Pull resolves a manifest and downloads every missing file into the cache.
// Returns the manifest and the snapshot directory it landed in.
func (m *Manager) Pull(ctx context.Context, req types.PullRequest) (types.DiscoveryResult, string, error) {
	prefs := m.preferences(req.Preferences)
	m.log.Debug().Str("repo", req.RepoID).Str("prefs", prefs.Hash()).Msg("pull")
	res, err := m.engine.Discover(ctx, req.RepoID, req.Revision, prefs)
	if err != nil {
		return types.DiscoveryResult{}, "", err
	}
	dir, err := m.puller.Pull(ctx, res)
	if err != nil {
		return types.DiscoveryResult{}, "", err
	}
	return res, dir, nil
}
