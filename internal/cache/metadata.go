package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"hubd/internal/common/fsutil"
)

const metadataFileName = "hubd-metadata.json"

// ModelMetadata records what was resolved and fetched for a cached model.
// One metadata file lives at the top of each models--... directory.
type ModelMetadata struct {
	RepoID    string    `json:"repo_id"`
	Revision  string    `json:"revision"`
	FetchedAt time.Time `json:"fetched_at"`
	Files     []string  `json:"files"`
	// Context length probed from the model config, when one declared it.
	ContextLength int `json:"context_length,omitempty"`
}

// WriteMetadata persists metadata for a cached repository, overwriting any
// previous record.
func (s *Store) WriteMetadata(meta ModelMetadata) error {
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filepath.Join(s.ModelDir(meta.RepoID), metadataFileName), b, 0o644)
}

// ReadMetadata loads the metadata record for a cached repository. A missing
// or unreadable file reads as (zero, false): cache corruption is recomputed,
// not surfaced.
func (s *Store) ReadMetadata(repoID string) (ModelMetadata, bool) {
	b, err := os.ReadFile(filepath.Join(s.ModelDir(repoID), metadataFileName))
	if err != nil {
		return ModelMetadata{}, false
	}
	var meta ModelMetadata
	if err := json.Unmarshal(b, &meta); err != nil {
		return ModelMetadata{}, false
	}
	return meta, true
}
