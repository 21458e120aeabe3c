package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"hubd/pkg/types"
)

// DefaultEndpoint is the public hub API host.
const DefaultEndpoint = "https://huggingface.co"

// metadataTimeout bounds listing and repo-info calls. Large file downloads
// use their own, much longer timeout (see internal/download).
const metadataTimeout = 30 * time.Second

var (
	listingFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hubd",
			Subsystem: "hub",
			Name:      "listing_fetch_total",
			Help:      "Repository listing lookups by outcome (hit, miss, error)",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(listingFetchTotal)
}

// treeEntry is the wire shape of one entry of the hub tree API.
type treeEntry struct {
	Type string `json:"type"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// RepoInfo is the subset of repository metadata the resolver consumes.
type RepoInfo struct {
	ID      string   `json:"id"`
	SHA     string   `json:"sha"`
	Private bool     `json:"private"`
	Gated   bool     `json:"-"`
	Tags    []string `json:"tags"`
}

// Client lists files of remote model repositories through the hub tree API,
// backed by an on-disk TTL listing cache. Safe for concurrent use; concurrent
// listings of the same (repo, revision) may both fetch and both write the
// cache entry, which is benign because the content is idempotent.
type Client struct {
	endpoint string
	token    string
	httpc    *http.Client
	cache    *ListingCache
	log      zerolog.Logger

	hits   atomic.Uint64
	misses atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the hub API host (useful for tests and mirrors).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithToken sets the access token used for gated/private repositories.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpc = h }
}

// NewClient returns a hub client persisting listings in cache. When no token
// option is given, HF_TOKEN and HUGGING_FACE_HUB_TOKEN are consulted.
func NewClient(cache *ListingCache, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint: DefaultEndpoint,
		httpc:    &http.Client{Timeout: metadataTimeout},
		cache:    cache,
		log:      log,
	}
	for _, o := range opts {
		o(c)
	}
	if c.token == "" {
		if v := os.Getenv("HF_TOKEN"); v != "" {
			c.token = v
		} else if v := os.Getenv("HUGGING_FACE_HUB_TOKEN"); v != "" {
			c.token = v
		}
	}
	return c
}

// Stats reports listing cache hit/miss counts since construction.
func (c *Client) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// ListFiles returns the flat, path-sorted file listing of (repoID, revision),
// expanding directories recursively. A cached listing fresher than the TTL is
// returned verbatim without any network call.
func (c *Client) ListFiles(ctx context.Context, repoID, revision string) ([]types.RepoEntry, error) {
	if revision == "" {
		revision = "main"
	}
	if c.cache != nil {
		if entries, ok := c.cache.Get(repoID, revision); ok {
			c.hits.Add(1)
			listingFetchTotal.WithLabelValues("hit").Inc()
			return entries, nil
		}
	}
	c.misses.Add(1)
	listingFetchTotal.WithLabelValues("miss").Inc()

	var files []types.RepoEntry
	if err := c.listTree(ctx, repoID, revision, "", &files, true); err != nil {
		listingFetchTotal.WithLabelValues("error").Inc()
		// Gated repos can present as missing to anonymous callers; surface
		// the credential hint instead of a misleading not-found.
		if IsNotFound(err) {
			if info, ierr := c.Info(ctx, repoID); ierr == nil && (info.Gated || info.Private) {
				return nil, ErrAuthRequired(repoID)
			}
		}
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if c.cache != nil {
		if err := c.cache.Put(repoID, revision, files); err != nil {
			c.log.Warn().Err(err).Str("repo", repoID).Msg("persist listing failed")
		}
	}
	return files, nil
}

// listTree fetches one tree level and recurses into directories. Subdirectory
// failures are non-fatal: a best-effort union beats total failure. Only the
// top-level fetch surfaces errors.
func (c *Client) listTree(ctx context.Context, repoID, revision, subpath string, out *[]types.RepoEntry, topLevel bool) error {
	u := c.endpoint + "/api/models/" + repoID + "/tree/" + url.PathEscape(revision)
	// Directory names are escaped per segment so spaces or reserved
	// characters survive the round trip without escaping the separators.
	for _, seg := range strings.Split(subpath, "/") {
		if seg != "" {
			u += "/" + url.PathEscape(seg)
		}
	}
	entries, err := c.fetchTreePage(ctx, repoID, u)
	if err != nil {
		if !topLevel {
			c.log.Warn().Err(err).Str("repo", repoID).Str("path", subpath).
				Msg("subdirectory listing failed, skipping")
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.Type == "directory" {
			if err := c.listTree(ctx, repoID, revision, e.Path, out, false); err != nil {
				return err
			}
			continue
		}
		*out = append(*out, types.RepoEntry{Path: e.Path, SizeBytes: e.Size})
	}
	return nil
}

func (c *Client) fetchTreePage(ctx context.Context, repoID, u string) ([]treeEntry, error) {
	body, err := c.get(ctx, repoID, u)
	if err != nil {
		return nil, err
	}
	var entries []treeEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode tree listing: %w", err)
	}
	return entries, nil
}

// Info fetches repository metadata (revision sha, gated/private flags).
func (c *Client) Info(ctx context.Context, repoID string) (RepoInfo, error) {
	body, err := c.get(ctx, repoID, c.endpoint+"/api/models/"+repoID)
	if err != nil {
		return RepoInfo{}, err
	}
	// Gated repos report either a bool or an access mode string; decode
	// loosely and normalize.
	var raw struct {
		ID      string          `json:"id"`
		SHA     string          `json:"sha"`
		Private bool            `json:"private"`
		Gated   json.RawMessage `json:"gated"`
		Tags    []string        `json:"tags"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return RepoInfo{}, fmt.Errorf("decode repo info: %w", err)
	}
	info := RepoInfo{ID: raw.ID, SHA: raw.SHA, Private: raw.Private, Tags: raw.Tags}
	if len(raw.Gated) > 0 && string(raw.Gated) != "false" && string(raw.Gated) != "null" {
		info.Gated = true
	}
	return info, nil
}

// ResolveURL returns the content URL for one file of a repository revision.
// The endpoint supports HTTP range requests for resume.
func (c *Client) ResolveURL(repoID, revision, path string) string {
	if revision == "" {
		revision = "main"
	}
	return c.endpoint + "/" + repoID + "/resolve/" + url.PathEscape(revision) + "/" + path
}

// Token exposes the configured credential for the download path.
func (c *Client) Token() string { return c.token }

func (c *Client) get(ctx context.Context, repoID, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hub request: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound(repoID)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrAuthRequired(repoID)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("hub request %s: unexpected status %d", u, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
