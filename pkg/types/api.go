package types

// ResolveRequest asks the engine to discover the file manifest for a model.
type ResolveRequest struct {
	// Repository identifier in "org/name" form.
	// example: microsoft/Phi-3-mini-4k-instruct-onnx
	RepoID string `json:"repo_id" example:"microsoft/Phi-3-mini-4k-instruct-onnx"`
	// Repository revision (branch, tag, or commit). Defaults to "main".
	// example: main
	Revision string `json:"revision,omitempty" example:"main"`
	// Per-resolution preferences. Omitted fields take the server defaults.
	Preferences *ModelPreferences `json:"preferences,omitempty"`
}

// ResolveResponse wraps the manifest returned by POST /resolve.
type ResolveResponse struct {
	Result DiscoveryResult `json:"result"`
}

// PullRequest asks the server to download a previously resolved manifest.
type PullRequest struct {
	// Repository identifier in "org/name" form.
	// example: microsoft/Phi-3-mini-4k-instruct-onnx
	RepoID string `json:"repo_id" example:"microsoft/Phi-3-mini-4k-instruct-onnx"`
	// Repository revision. Defaults to "main".
	// example: main
	Revision string `json:"revision,omitempty" example:"main"`
	// Per-resolution preferences. Omitted fields take the server defaults.
	Preferences *ModelPreferences `json:"preferences,omitempty"`
}

// PullResponse reports where the downloaded snapshot landed.
type PullResponse struct {
	Result DiscoveryResult `json:"result"`
	// Local snapshot directory holding the downloaded files.
	// example: /home/user/.cache/huggingface/hub/models--org--name/snapshots/main
	SnapshotDir string `json:"snapshot_dir" example:"/home/user/.cache/huggingface/hub/models--org--name/snapshots/main"`
}

// ModelsResponse wraps the list of cached models returned by GET /models.
type ModelsResponse struct {
	Models []CachedModel `json:"models"`
}

// BackendsResponse reports the fallback chain built for this host.
type BackendsResponse struct {
	// Candidates in fallback order; the last entry is always cpu.
	Chain []BackendCandidate `json:"chain"`
	// Backend that survived activation, if one has been activated.
	// example: cuda12
	Active string `json:"active,omitempty" example:"cuda12"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: repository not found: org/name
	Error string `json:"error" example:"repository not found: org/name"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Cache root directory in use.
	// example: /home/user/.cache/huggingface/hub
	CacheRoot string `json:"cache_root" example:"/home/user/.cache/huggingface/hub"`
	// Number of cached model snapshots.
	// example: 3
	CachedModels int `json:"cached_models" example:"3"`
	// Listing cache hits since start.
	// example: 42
	ListingHits uint64 `json:"listing_hits" example:"42"`
	// Listing cache misses since start.
	// example: 7
	ListingMisses uint64 `json:"listing_misses" example:"7"`
	// Backend that survived activation, if any.
	// example: cpu
	ActiveBackend string `json:"active_backend,omitempty" example:"cpu"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
