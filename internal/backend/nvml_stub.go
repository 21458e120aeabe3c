//go:build !cuda

package backend

// nullProber reports no NVIDIA GPU when built without the cuda tag; the
// sysfs scan in ProbeHost can still spot hardware on Linux.
type nullProber struct{}

// NewGPUProber returns a no-op prober for builds without NVML support.
func NewGPUProber() GPUProber { return nullProber{} }

func (nullProber) Probe() GPUReport {
	return GPUReport{Vendor: VendorNone, Error: "nvml disabled: rebuild with -tags cuda"}
}
