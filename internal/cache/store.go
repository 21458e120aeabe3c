package cache

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hubd/internal/common/fsutil"
	"hubd/pkg/types"
)

// lfsPointerMarker opens hosting-backend pointer stubs served in place of
// real content. A sub-1KB file starting with it was never actually
// downloaded and must read as absent.
const lfsPointerMarker = "version https://git-lfs.github.com/spec/v1"

// placeholderMaxSize bounds how large a pointer stub can be.
const placeholderMaxSize = 1024

const modelDirPrefix = "models--"

// Store lays out downloaded artifacts in the HuggingFace-compatible
// snapshot tree: {root}/models--{org}--{name}/snapshots/{revision}/{path}.
// Independent Stores with distinct roots can coexist in one process.
type Store struct {
	root string
	log  zerolog.Logger
}

// ResolveCacheRoot picks the cache root directory. Priority: HUBD_CACHE,
// HF_HOME (+"hub"), XDG_CACHE_HOME (+"huggingface/hub"), then the user
// profile default ~/.cache/huggingface/hub. First non-empty wins.
func ResolveCacheRoot() (string, error) {
	if v := os.Getenv("HUBD_CACHE"); v != "" {
		return fsutil.ExpandHome(v)
	}
	if v := os.Getenv("HF_HOME"); v != "" {
		p, err := fsutil.ExpandHome(v)
		if err != nil {
			return "", err
		}
		return filepath.Join(p, "hub"), nil
	}
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		p, err := fsutil.ExpandHome(v)
		if err != nil {
			return "", err
		}
		return filepath.Join(p, "huggingface", "hub"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", "huggingface", "hub"), nil
}

// NewStore returns a store rooted at root. An empty root resolves through
// ResolveCacheRoot.
func NewStore(root string, log zerolog.Logger) (*Store, error) {
	if root == "" {
		var err error
		root, err = ResolveCacheRoot()
		if err != nil {
			return nil, err
		}
	}
	return &Store{root: root, log: log}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string { return s.root }

// DiscoveryCacheDir returns the sibling directory holding listing caches.
func (s *Store) DiscoveryCacheDir() string {
	return filepath.Join(s.root, ".discovery-cache")
}

// modelDirName flattens "org/name" into "models--org--name".
func modelDirName(repoID string) string {
	return modelDirPrefix + strings.ReplaceAll(repoID, "/", "--")
}

// repoIDFromDirName reverses modelDirName. ok is false for foreign
// directories.
func repoIDFromDirName(dir string) (string, bool) {
	if !strings.HasPrefix(dir, modelDirPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(dir, modelDirPrefix)
	parts := strings.SplitN(rest, "--", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", false
	}
	return parts[0] + "/" + strings.ReplaceAll(parts[1], "--", "/"), true
}

// ModelDir returns the directory holding every snapshot of a repository.
func (s *Store) ModelDir(repoID string) string {
	return filepath.Join(s.root, modelDirName(repoID))
}

// Resolve returns the local snapshot directory for (repoID, revision). The
// directory is created if missing so downloads have a destination.
func (s *Store) Resolve(repoID, revision string) (string, error) {
	if revision == "" {
		revision = "main"
	}
	dir := filepath.Join(s.ModelDir(repoID), "snapshots", revision)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// IsComplete reports whether path holds a fully downloaded artifact.
// Placeholder pointer stubs count as absent.
func (s *Store) IsComplete(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if info.Size() >= placeholderMaxSize {
		return true
	}
	head := make([]byte, len(lfsPointerMarker))
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	n, _ := f.Read(head)
	return !bytes.HasPrefix(head[:n], []byte(lfsPointerMarker))
}

// HasFile reports whether one file of a snapshot is present and complete.
func (s *Store) HasFile(repoID, revision, relPath string) bool {
	dir := filepath.Join(s.ModelDir(repoID), "snapshots", revision)
	return s.IsComplete(filepath.Join(dir, filepath.FromSlash(relPath)))
}

// Delete removes every snapshot of a repository. It reports whether anything
// existed; deleting an absent repository is not an error.
func (s *Store) Delete(repoID string) (bool, error) {
	dir := s.ModelDir(repoID)
	if !fsutil.PathExists(dir) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, err
	}
	s.log.Info().Str("repo", repoID).Str("dir", dir).Msg("deleted cached model")
	return true, nil
}

// GetCachedModels enumerates cached repositories. With no explicit "latest"
// pointer on disk, the most recently modified snapshot directory stands in
// for the cached instance.
func (s *Store) GetCachedModels() ([]types.CachedModel, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []types.CachedModel
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		repoID, ok := repoIDFromDirName(e.Name())
		if !ok {
			continue
		}
		snapDir := filepath.Join(s.root, e.Name(), "snapshots")
		snaps, err := os.ReadDir(snapDir)
		if err != nil {
			continue
		}
		var best string
		var bestTime time.Time
		for _, snap := range snaps {
			if !snap.IsDir() {
				continue
			}
			info, err := snap.Info()
			if err != nil {
				continue
			}
			if best == "" || info.ModTime().After(bestTime) {
				best, bestTime = snap.Name(), info.ModTime()
			}
		}
		if best == "" {
			continue
		}
		p := filepath.Join(snapDir, best)
		size, err := fsutil.DirSize(p)
		if err != nil {
			s.log.Warn().Err(err).Str("dir", p).Msg("sizing snapshot failed")
		}
		out = append(out, types.CachedModel{
			RepoID:       repoID,
			Revision:     best,
			Path:         p,
			SizeBytes:    size,
			LastModified: bestTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RepoID < out[j].RepoID })
	return out, nil
}
