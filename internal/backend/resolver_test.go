package backend

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"hubd/pkg/types"
)

// fakeEngine scripts per-kind construction behavior.
type fakeEngine struct {
	mu        sync.Mutex
	constructs int32
	failKinds map[types.BackendKind]error
	// degradeKinds construct fine but report only the CPU provider.
	degradeKinds map[types.BackendKind]bool
	closed       []types.BackendKind
}

func (f *fakeEngine) CreateSession(_ string, cand types.BackendCandidate, _ SessionOptions) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructs++
	if err, ok := f.failKinds[cand.Kind]; ok {
		return nil, err
	}
	providers := []string{expectedProviders[cand.Kind]}
	if f.degradeKinds[cand.Kind] {
		providers = []string{"CPUExecutionProvider"}
	}
	return &fakeSession{engine: f, kind: cand.Kind, providers: providers}, nil
}

type fakeSession struct {
	engine    *fakeEngine
	kind      types.BackendKind
	providers []string
}

func (s *fakeSession) ActiveProviders() []string { return s.providers }
func (s *fakeSession) Close() error {
	s.engine.mu.Lock()
	defer s.engine.mu.Unlock()
	s.engine.closed = append(s.engine.closed, s.kind)
	return nil
}

func nvidiaHost() HostInfo {
	return HostInfo{OS: "linux", GPU: GPUReport{Found: true, Vendor: VendorNvidia, CUDAMajor: 13}}
}

func newTestResolver(engine Engine, host HostInfo, chain []types.BackendCandidate) *Resolver {
	r := NewResolver(engine, nil, host, chain, zerolog.Nop())
	r.libProbe = func(string) bool { return true }
	return r
}

func TestActivatePicksFirstWorkingCandidate(t *testing.T) {
	eng := &fakeEngine{}
	chain := BuildFallbackChain(nvidiaHost(), types.DeviceAuto, ChainOptions{})
	r := newTestResolver(eng, nvidiaHost(), chain)
	sess, cand, err := r.Activate(context.Background(), "/m/model.onnx")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if cand.Kind != types.BackendCuda13 {
		t.Fatalf("active = %v, want cuda13", cand.Kind)
	}
	if !hasProvider(sess.ActiveProviders(), "CUDAExecutionProvider") {
		t.Fatalf("providers = %v", sess.ActiveProviders())
	}
}

func TestActivateAdvancesOnConstructionFailure(t *testing.T) {
	eng := &fakeEngine{failKinds: map[types.BackendKind]error{
		types.BackendCuda13: errors.New("driver too old"),
	}}
	chain := BuildFallbackChain(nvidiaHost(), types.DeviceAuto, ChainOptions{})
	r := newTestResolver(eng, nvidiaHost(), chain)
	_, cand, err := r.Activate(context.Background(), "/m/model.onnx")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if cand.Kind != types.BackendCuda12 {
		t.Fatalf("active = %v, want cuda12 after cuda13 failure", cand.Kind)
	}
}

func TestActivateVerificationFailureDisposesAndAdvances(t *testing.T) {
	// Constructing succeeds but the native layer silently degraded to CPU:
	// the session must be disposed and the next candidate tried.
	eng := &fakeEngine{degradeKinds: map[types.BackendKind]bool{
		types.BackendCuda13: true,
		types.BackendCuda12: true,
	}}
	chain := BuildFallbackChain(nvidiaHost(), types.DeviceAuto, ChainOptions{})
	r := newTestResolver(eng, nvidiaHost(), chain)
	_, cand, err := r.Activate(context.Background(), "/m/model.onnx")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if cand.Kind != types.BackendCpu {
		t.Fatalf("active = %v, want cpu after silent degradation", cand.Kind)
	}
	if len(eng.closed) != 2 {
		t.Fatalf("closed = %v, want both degraded sessions disposed", eng.closed)
	}
}

func TestActivatePreflightSkipsWithoutConstruction(t *testing.T) {
	eng := &fakeEngine{}
	host := HostInfo{OS: "linux", GPU: GPUReport{Found: true, Vendor: VendorNvidia, CUDAMajor: 12}}
	r := newTestResolver(eng, host, BuildFallbackChain(host, types.DeviceAuto, ChainOptions{}))
	// CUDA driver library missing: pre-flight fails before any native work.
	r.libProbe = func(string) bool { return false }
	_, cand, err := r.Activate(context.Background(), "/m/model.onnx")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if cand.Kind != types.BackendCpu {
		t.Fatalf("active = %v, want cpu", cand.Kind)
	}
	if eng.constructs != 1 {
		t.Fatalf("constructs = %d, want only the cpu session", eng.constructs)
	}
}

func TestActivateCPUFailureIsFatal(t *testing.T) {
	eng := &fakeEngine{failKinds: map[types.BackendKind]error{
		types.BackendCpu: errors.New("out of memory"),
	}}
	host := HostInfo{OS: "linux"}
	r := newTestResolver(eng, host, BuildFallbackChain(host, types.DeviceAuto, ChainOptions{}))
	_, _, err := r.Activate(context.Background(), "/m/model.onnx")
	if !IsNoUsableBackend(err) {
		t.Fatalf("expected fatal no-usable-backend, got %v", err)
	}
}

func TestActivateOnceOnlyUnderConcurrency(t *testing.T) {
	eng := &fakeEngine{}
	host := HostInfo{OS: "linux"}
	r := newTestResolver(eng, host, BuildFallbackChain(host, types.DeviceAuto, ChainOptions{}))

	const callers = 16
	var wg sync.WaitGroup
	var failures atomic.Int32
	results := make([]types.BackendKind, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, cand, err := r.Activate(context.Background(), "/m/model.onnx")
			if err != nil {
				failures.Add(1)
				return
			}
			results[i] = cand.Kind
		}(i)
	}
	wg.Wait()
	if failures.Load() != 0 {
		t.Fatalf("%d concurrent activations failed", failures.Load())
	}
	if eng.constructs != 1 {
		t.Fatalf("constructs = %d, want exactly one initialization", eng.constructs)
	}
	for i, k := range results {
		if k != types.BackendCpu {
			t.Fatalf("caller %d observed %v, want the shared cpu backend", i, k)
		}
	}
	if active, ok := r.Active(); !ok || active.Kind != types.BackendCpu {
		t.Fatalf("Active() = (%v,%v)", active, ok)
	}
}
