package download

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"hubd/internal/cache"
	"hubd/internal/discovery"
	"hubd/pkg/types"
)

// URLResolver maps one repository file to its content URL, satisfied by
// hub.Client.
type URLResolver interface {
	ResolveURL(repoID, revision, path string) string
}

// Puller materializes a discovery manifest into the local cache store.
type Puller struct {
	urls  URLResolver
	store *cache.Store
	dl    *Downloader
	log   zerolog.Logger
}

// NewPuller wires a downloader to the cache layout.
func NewPuller(urls URLResolver, store *cache.Store, dl *Downloader, log zerolog.Logger) *Puller {
	return &Puller{urls: urls, store: store, dl: dl, log: log}
}

// Pull downloads every file of the manifest that is not already complete in
// the cache and records the snapshot metadata. It returns the snapshot
// directory. Already-complete files (placeholder stubs excluded) are skipped,
// making repeated pulls idempotent.
func (p *Puller) Pull(ctx context.Context, res types.DiscoveryResult) (string, error) {
	snapDir, err := p.store.Resolve(res.RepoID, res.Revision)
	if err != nil {
		return "", err
	}
	files := res.AllFiles()
	for _, rel := range files {
		dest := filepath.Join(snapDir, filepath.FromSlash(rel))
		if p.store.IsComplete(dest) {
			p.log.Debug().Str("file", rel).Msg("already cached, skipping")
			continue
		}
		url := p.urls.ResolveURL(res.RepoID, res.Revision, rel)
		p.log.Info().Str("repo", res.RepoID).Str("file", rel).Msg("downloading")
		if err := p.dl.Fetch(ctx, url, dest); err != nil {
			return "", fmt.Errorf("fetch %s: %w", rel, err)
		}
	}
	meta := cache.ModelMetadata{
		RepoID:    res.RepoID,
		Revision:  res.Revision,
		FetchedAt: time.Now().UTC(),
		Files:     files,
	}
	if n, ok := probeConfigContextLength(snapDir, res.ConfigFiles); ok {
		meta.ContextLength = n
	}
	if err := p.store.WriteMetadata(meta); err != nil {
		p.log.Warn().Err(err).Str("repo", res.RepoID).Msg("persist metadata failed")
	}
	return snapDir, nil
}

// probeConfigContextLength reads the downloaded model config, if the manifest
// carried one, and extracts the declared context length.
func probeConfigContextLength(snapDir string, configFiles []string) (int, bool) {
	for _, rel := range configFiles {
		if path.Base(rel) != "config.json" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(snapDir, filepath.FromSlash(rel)))
		if err != nil {
			return 0, false
		}
		return discovery.ProbeContextLength(b)
	}
	return 0, false
}
