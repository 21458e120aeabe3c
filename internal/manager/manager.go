package manager

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hubd/internal/backend"
	"hubd/internal/cache"
	"hubd/internal/discovery"
	"hubd/internal/download"
	"hubd/internal/hub"
	"hubd/pkg/types"
)

// Manager coordinates resolution, download and backend activation. All
// dependencies are immutable after construction; the manager itself holds no
// mutable state and is safe for concurrent use.
type Manager struct {
	start    time.Time
	hub      *hub.Client
	engine   *discovery.Engine
	store    *cache.Store
	puller   *download.Puller
	backends *backend.Resolver
	defaults types.ModelPreferences
	log      zerolog.Logger
}

// ManagerConfig carries the wired dependencies. Defaults left zero are
// replaced with the standard preference orders.
type ManagerConfig struct {
	Hub      *hub.Client
	Engine   *discovery.Engine
	Store    *cache.Store
	Puller   *download.Puller
	Backends *backend.Resolver
	Defaults types.ModelPreferences
	Logger   zerolog.Logger
}

// NewWithConfig builds a Manager, applying package defaults for unset fields.
func NewWithConfig(cfg ManagerConfig) *Manager {
	defaults := cfg.Defaults
	if len(defaults.QuantizationPriority) == 0 && len(defaults.DecoderPriority) == 0 && defaults.DevicePreference == "" {
		defaults = types.DefaultPreferences()
	}
	return &Manager{
		start:    time.Now(),
		hub:      cfg.Hub,
		engine:   cfg.Engine,
		store:    cfg.Store,
		puller:   cfg.Puller,
		backends: cfg.Backends,
		defaults: defaults,
		log:      cfg.Logger,
	}
}

// Ready reports whether the cache root is usable.
func (m *Manager) Ready() bool {
	if m.store == nil {
		return false
	}
	_, err := os.Stat(m.store.Root())
	return err == nil
}

// CachedModels lists locally cached snapshots, newest metadata first.
func (m *Manager) CachedModels() ([]types.CachedModel, error) {
	return m.store.GetCachedModels()
}

// DeleteModel removes every cached snapshot of a repository. Returns false
// when nothing was cached for it.
func (m *Manager) DeleteModel(repoID string) (bool, error) {
	if !strings.Contains(repoID, "/") {
		return false, fmt.Errorf("invalid repo id: %q", repoID)
	}
	deleted, err := m.store.Delete(repoID)
	if err != nil {
		return false, err
	}
	if deleted {
		m.log.Info().Str("repo", repoID).Msg("cache entry deleted")
	}
	return deleted, nil
}
