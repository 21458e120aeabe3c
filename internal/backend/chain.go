package backend

import (
	"hubd/pkg/types"
)

// providerTokens key downloaded runtime binary sets per backend.
var providerTokens = map[types.BackendKind]string{
	types.BackendCpu:      "cpu",
	types.BackendCuda12:   "cuda-12",
	types.BackendCuda13:   "cuda-13",
	types.BackendDirectML: "directml",
	types.BackendVulkan:   "vulkan",
	types.BackendMetal:    "metal",
	types.BackendCoreML:   "coreml",
}

func candidate(kind types.BackendKind) types.BackendCandidate {
	return types.BackendCandidate{Kind: kind, ProviderToken: providerTokens[kind]}
}

// ChainOptions tune fallback chain construction.
type ChainOptions struct {
	// Include the vendor-neutral Vulkan backend for secondary-vendor GPUs in
	// the auto chain. Off by default: integrated GPUs and the Vulkan path are
	// more failure-prone, so the default chain favors CPU.
	EnableVulkan bool
}

// BuildFallbackChain constructs the ordered backend candidates for a host.
//
// The chain is built fresh per process from the hardware probe, never
// persisted, and always terminates in exactly one CPU entry. An explicit
// (non-auto) device preference collapses the chain to that backend, with CPU
// kept as the terminal safety net; there is no sideways fallback across GPU
// families for explicit requests.
func BuildFallbackChain(host HostInfo, pref types.DevicePreference, opts ChainOptions) []types.BackendCandidate {
	var chain []types.BackendCandidate
	switch pref {
	case types.DeviceCpu:
		// Explicit CPU: nothing else to try.
	case types.DeviceCuda:
		chain = append(chain, cudaCandidates(host)[:1]...)
	case types.DeviceDirectML:
		chain = append(chain, candidate(types.BackendDirectML))
	case types.DeviceCoreML:
		chain = append(chain, candidate(types.BackendCoreML))
	default: // auto
		switch {
		case host.AppleSilicon:
			// Native GPU backend for the platform beats any discrete-GPU
			// heuristic on Apple silicon.
			chain = append(chain, candidate(types.BackendCoreML))
		case host.GPU.Found && host.GPU.Vendor == VendorNvidia:
			chain = append(chain, cudaCandidates(host)...)
		case host.GPU.Found && !host.AppleSilicon && opts.EnableVulkan:
			chain = append(chain, candidate(types.BackendVulkan))
		}
	}
	// CPU terminates every chain, unconditionally and exactly once.
	return append(dedupe(chain), candidate(types.BackendCpu))
}

// cudaCandidates orders CUDA versions newest-supported first.
func cudaCandidates(host HostInfo) []types.BackendCandidate {
	if host.GPU.CUDAMajor >= 13 {
		return []types.BackendCandidate{candidate(types.BackendCuda13), candidate(types.BackendCuda12)}
	}
	return []types.BackendCandidate{candidate(types.BackendCuda12)}
}

func dedupe(chain []types.BackendCandidate) []types.BackendCandidate {
	seen := make(map[types.BackendKind]bool, len(chain))
	out := chain[:0]
	for _, c := range chain {
		if c.Kind == types.BackendCpu || seen[c.Kind] {
			continue
		}
		seen[c.Kind] = true
		out = append(out, c)
	}
	return out
}
