package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
)

// GPUVendor identifies the discrete GPU vendor found on the host.
type GPUVendor string

const (
	VendorNone   GPUVendor = "none"
	VendorNvidia GPUVendor = "nvidia"
	VendorAMD    GPUVendor = "amd"
	VendorIntel  GPUVendor = "intel"
)

// GPUReport is the outcome of a GPU probe.
type GPUReport struct {
	Found         bool      `json:"found"`
	Vendor        GPUVendor `json:"vendor"`
	Name          string    `json:"name,omitempty"`
	DriverVersion string    `json:"driver_version,omitempty"`
	// Major CUDA version supported by the installed driver (NVIDIA only).
	CUDAMajor int    `json:"cuda_major,omitempty"`
	MemoryMB  uint64 `json:"memory_mb,omitempty"`
	Error     string `json:"error,omitempty"`
}

// GPUProber abstracts the vendor probe for testing; the real implementation
// goes through NVML when built with -tags cuda.
type GPUProber interface {
	Probe() GPUReport
}

// HostInfo describes the platform facts the chain builder conditions on.
type HostInfo struct {
	OS           string    `json:"os"`
	Arch         string    `json:"arch"`
	AppleSilicon bool      `json:"apple_silicon"`
	GPU          GPUReport `json:"gpu"`
}

// ProbeHost gathers platform and GPU facts. When the NVML probe finds
// nothing, a cheap sysfs scan still identifies secondary-vendor GPUs on
// Linux.
func ProbeHost(prober GPUProber, log zerolog.Logger) HostInfo {
	info := HostInfo{
		OS:           runtime.GOOS,
		Arch:         runtime.GOARCH,
		AppleSilicon: runtime.GOOS == "darwin" && runtime.GOARCH == "arm64",
	}
	if prober != nil {
		info.GPU = prober.Probe()
	}
	if !info.GPU.Found && info.OS == "linux" {
		if vendor := sysfsGPUVendor(); vendor != VendorNone {
			info.GPU = GPUReport{Found: true, Vendor: vendor}
		}
	}
	log.Debug().Str("os", info.OS).Str("arch", info.Arch).
		Bool("apple_silicon", info.AppleSilicon).
		Str("gpu_vendor", string(info.GPU.Vendor)).
		Msg("host probe complete")
	return info
}

// pci vendor ids as exposed by /sys/class/drm/card*/device/vendor.
const (
	pciVendorAMD    = "0x1002"
	pciVendorIntel  = "0x8086"
	pciVendorNvidia = "0x10de"
)

func sysfsGPUVendor() GPUVendor {
	cards, err := filepath.Glob("/sys/class/drm/card*/device/vendor")
	if err != nil {
		return VendorNone
	}
	best := VendorNone
	for _, p := range cards {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		switch strings.TrimSpace(string(b)) {
		case pciVendorNvidia:
			return VendorNvidia
		case pciVendorAMD:
			best = VendorAMD
		case pciVendorIntel:
			if best == VendorNone {
				best = VendorIntel
			}
		}
	}
	return best
}
