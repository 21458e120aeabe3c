package backend

import (
	"hubd/pkg/types"
)

// Session is a live inference session created by the engine. The resolution
// layer never inspects weights or graphs; only paths and provider names cross
// this boundary.
type Session interface {
	// ActiveProviders reports the execution providers actually registered
	// in-process. Construction succeeding is not proof of activation: some
	// native layers silently degrade to CPU.
	ActiveProviders() []string
	Close() error
}

// SessionOptions carry engine construction knobs.
type SessionOptions struct {
	// Directory holding the native runtime binaries for the chosen backend.
	LibraryDir string
}

// Engine is the inference engine boundary. The real engine is an external
// collaborator; hubd ships an in-process stub sufficient for resolution
// plumbing and tests.
type Engine interface {
	CreateSession(modelPath string, candidate types.BackendCandidate, opts SessionOptions) (Session, error)
}

// expectedProviders maps a backend kind to the provider name that must be
// registered for the backend to count as active.
var expectedProviders = map[types.BackendKind]string{
	types.BackendCpu:      "CPUExecutionProvider",
	types.BackendCuda12:   "CUDAExecutionProvider",
	types.BackendCuda13:   "CUDAExecutionProvider",
	types.BackendDirectML: "DmlExecutionProvider",
	types.BackendVulkan:   "VulkanExecutionProvider",
	types.BackendMetal:    "MetalExecutionProvider",
	types.BackendCoreML:   "CoreMLExecutionProvider",
}

// stubSession is the session of the in-process stub engine.
type stubSession struct {
	providers []string
}

func (s *stubSession) ActiveProviders() []string { return s.providers }
func (s *stubSession) Close() error              { return nil }

// stubEngine fabricates sessions that report the requested provider as
// active. It stands in where no real inference engine is linked, mirroring
// how the daemon runs without native runtimes during resolution-only use.
type stubEngine struct{}

// NewStubEngine returns the default in-process engine.
func NewStubEngine() Engine { return stubEngine{} }

func (stubEngine) CreateSession(_ string, cand types.BackendCandidate, _ SessionOptions) (Session, error) {
	return &stubSession{providers: []string{expectedProviders[cand.Kind]}}, nil
}
