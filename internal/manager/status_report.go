package manager

import (
	"time"

	"hubd/pkg/types"
)

// Backends reports the fallback chain and, if activation happened, the
// surviving backend.
func (m *Manager) Backends() types.BackendsResponse {
	resp := types.BackendsResponse{}
	if m.backends == nil {
		return resp
	}
	resp.Chain = m.backends.Chain()
	if active, ok := m.backends.Active(); ok {
		resp.Active = string(active.Kind)
	}
	return resp
}

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	now := time.Now()
	resp := types.StatusResponse{
		CacheRoot:      m.store.Root(),
		UptimeSeconds:  int64(now.Sub(m.start).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	if models, err := m.store.GetCachedModels(); err == nil {
		resp.CachedModels = len(models)
	}
	if m.hub != nil {
		resp.ListingHits, resp.ListingMisses = m.hub.Stats()
	}
	if m.backends != nil {
		if active, ok := m.backends.Active(); ok {
			resp.ActiveBackend = string(active.Kind)
		}
	}
	return resp
}
