package backend

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"hubd/pkg/types"
)

var backendSkipsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hubd",
		Subsystem: "backend",
		Name:      "skips_total",
		Help:      "Fallback-chain candidates skipped, by kind and stage",
	},
	[]string{"kind", "stage"},
)

func init() {
	prometheus.MustRegister(backendSkipsTotal)
}

// Resolver walks a fallback chain until one backend activates. Construction
// is explicit and injectable: independent Resolvers with distinct cache roots
// can coexist, there is no process-wide singleton.
//
// Initialization runs at most once per Resolver, guarded by a mutex with an
// idempotent fast path; concurrent first callers block until the winner
// finishes, then all observe the same resolved backend.
type Resolver struct {
	engine   Engine
	acq      *Acquirer
	host     HostInfo
	chain    []types.BackendCandidate
	libProbe func(name string) bool
	log      zerolog.Logger

	mu      sync.Mutex
	done    atomic.Bool
	session Session
	active  types.BackendCandidate
}

// NewResolver builds a resolver over the given chain.
func NewResolver(engine Engine, acq *Acquirer, host HostInfo, chain []types.BackendCandidate, log zerolog.Logger) *Resolver {
	return &Resolver{
		engine:   engine,
		acq:      acq,
		host:     host,
		chain:    chain,
		libProbe: probeSharedLibrary,
		log:      log,
	}
}

// Chain returns the fallback chain the resolver walks.
func (r *Resolver) Chain() []types.BackendCandidate {
	out := make([]types.BackendCandidate, len(r.chain))
	copy(out, r.chain)
	return out
}

// Active reports the resolved backend once activation has happened.
func (r *Resolver) Active() (types.BackendCandidate, bool) {
	if !r.done.Load() {
		return types.BackendCandidate{}, false
	}
	return r.active, true
}

// Activate walks the chain for modelPath and returns the surviving session.
// Subsequent calls return the already-resolved backend immediately.
func (r *Resolver) Activate(ctx context.Context, modelPath string) (Session, types.BackendCandidate, error) {
	if r.done.Load() {
		return r.session, r.active, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done.Load() {
		return r.session, r.active, nil
	}

	for _, cand := range r.chain {
		sess, err := r.tryActivate(ctx, modelPath, cand)
		if err != nil {
			if cand.Kind == types.BackendCpu {
				// CPU is the safety net; when even it fails there is nothing
				// left to try and the failure is fatal.
				return nil, types.BackendCandidate{}, ErrNoUsableBackend(err.Error())
			}
			r.log.Warn().Err(err).Str("backend", string(cand.Kind)).
				Msg("backend candidate skipped, advancing fallback chain")
			continue
		}
		r.session = sess
		r.active = cand
		r.done.Store(true)
		r.log.Info().Str("backend", string(cand.Kind)).Msg("backend activated")
		return sess, cand, nil
	}
	return nil, types.BackendCandidate{}, ErrNoUsableBackend("fallback chain exhausted")
}

// tryActivate runs the acquire-then-activate sequence for one candidate:
// pre-flight, binary acquisition, session construction, then verification
// that the provider really registered. CPU skips pre-flight and verification.
func (r *Resolver) tryActivate(ctx context.Context, modelPath string, cand types.BackendCandidate) (Session, error) {
	var opts SessionOptions
	if cand.Kind != types.BackendCpu {
		if err := r.preflight(cand); err != nil {
			backendSkipsTotal.WithLabelValues(string(cand.Kind), "preflight").Inc()
			return nil, err
		}
		if r.acq != nil {
			dir, err := r.acq.EnsureBackend(ctx, cand)
			if err != nil {
				backendSkipsTotal.WithLabelValues(string(cand.Kind), "acquire").Inc()
				return nil, ErrBackendUnavailable(string(cand.Kind), err.Error())
			}
			opts.LibraryDir = dir
		}
	}
	sess, err := r.engine.CreateSession(modelPath, cand, opts)
	if err != nil {
		backendSkipsTotal.WithLabelValues(string(cand.Kind), "construct").Inc()
		return nil, ErrBackendUnavailable(string(cand.Kind), err.Error())
	}
	if cand.Kind != types.BackendCpu {
		want := expectedProviders[cand.Kind]
		if !hasProvider(sess.ActiveProviders(), want) {
			// Construction succeeded but the native layer silently fell back.
			_ = sess.Close()
			backendSkipsTotal.WithLabelValues(string(cand.Kind), "verify").Inc()
			return nil, ErrBackendUnavailable(string(cand.Kind), "constructed but "+want+" not active")
		}
	}
	return sess, nil
}

// preflight runs a cheap local availability check before the expensive
// native initialization path gets a chance to fail noisily.
func (r *Resolver) preflight(cand types.BackendCandidate) error {
	switch cand.Kind {
	case types.BackendCuda12, types.BackendCuda13:
		if r.host.GPU.Vendor != VendorNvidia {
			return ErrBackendUnavailable(string(cand.Kind), "no NVIDIA GPU detected")
		}
		if !r.libProbe(cudaDriverLibrary(r.host.OS)) {
			return ErrBackendUnavailable(string(cand.Kind), "CUDA driver library not found")
		}
	case types.BackendDirectML:
		if r.host.OS != "windows" {
			return ErrBackendUnavailable(string(cand.Kind), "DirectML requires Windows")
		}
	case types.BackendCoreML, types.BackendMetal:
		if r.host.OS != "darwin" {
			return ErrBackendUnavailable(string(cand.Kind), "requires macOS")
		}
	case types.BackendVulkan:
		if !r.libProbe(vulkanLoaderLibrary(r.host.OS)) {
			return ErrBackendUnavailable(string(cand.Kind), "Vulkan loader not found")
		}
	}
	return nil
}

func hasProvider(providers []string, want string) bool {
	for _, p := range providers {
		if p == want {
			return true
		}
	}
	return false
}
