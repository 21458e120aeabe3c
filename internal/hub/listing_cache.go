package hub

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hubd/internal/common/fsutil"
	"hubd/pkg/types"
)

// DefaultListingTTL is how long a persisted listing is served without refetch.
const DefaultListingTTL = 24 * time.Hour

// CachedListing is the on-disk form of one repository listing.
type CachedListing struct {
	RepoID    string            `json:"repo_id"`
	Revision  string            `json:"revision"`
	Entries   []types.RepoEntry `json:"entries"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// ListingCache persists repository listings under a .discovery-cache
// directory, one JSON file per (repo, revision). Entries older than the TTL
// are treated as absent. Corrupt files are treated as absent and overwritten
// on the next successful write.
type ListingCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewListingCache returns a cache rooted at dir. A non-positive ttl selects
// DefaultListingTTL.
func NewListingCache(dir string, ttl time.Duration) *ListingCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &ListingCache{dir: dir, ttl: ttl, now: time.Now}
}

func listingFileName(repoID, revision string) string {
	flat := strings.ReplaceAll(repoID, "/", "_")
	return flat + "_" + revision + ".json"
}

// Get returns the cached entries for (repoID, revision) when present and
// fresher than the TTL.
func (c *ListingCache) Get(repoID, revision string) ([]types.RepoEntry, bool) {
	p := filepath.Join(c.dir, listingFileName(repoID, revision))
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	var cl CachedListing
	if err := json.Unmarshal(b, &cl); err != nil {
		// Corrupt cache file: treat as absent, next Put overwrites it.
		return nil, false
	}
	if c.now().Sub(cl.FetchedAt) >= c.ttl {
		return nil, false
	}
	return cl.Entries, true
}

// Put overwrites the cached listing for (repoID, revision).
func (c *ListingCache) Put(repoID, revision string, entries []types.RepoEntry) error {
	cl := CachedListing{RepoID: repoID, Revision: revision, Entries: entries, FetchedAt: c.now()}
	b, err := json.MarshalIndent(cl, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filepath.Join(c.dir, listingFileName(repoID, revision)), b, 0o644)
}
