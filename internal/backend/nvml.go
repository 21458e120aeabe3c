//go:build cuda

package backend

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlProber probes NVIDIA hardware through NVML. Built with -tags cuda.
type nvmlProber struct{}

// NewGPUProber returns the NVML-backed prober.
func NewGPUProber() GPUProber { return nvmlProber{} }

func (nvmlProber) Probe() GPUReport {
	ret := nvml.Init()
	if ret != nvml.SUCCESS {
		return GPUReport{Vendor: VendorNone, Error: fmt.Sprintf("nvml init: %v", nvml.ErrorString(ret))}
	}
	defer nvml.Shutdown()

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS || count == 0 {
		return GPUReport{Vendor: VendorNone}
	}
	report := GPUReport{Found: true, Vendor: VendorNvidia}
	if v, ret := nvml.SystemGetDriverVersion(); ret == nvml.SUCCESS {
		report.DriverVersion = v
	}
	if v, ret := nvml.SystemGetCudaDriverVersion(); ret == nvml.SUCCESS {
		// NVML reports e.g. 12040 for CUDA 12.4.
		report.CUDAMajor = v / 1000
	}
	if dev, ret := nvml.DeviceGetHandleByIndex(0); ret == nvml.SUCCESS {
		if name, ret := dev.GetName(); ret == nvml.SUCCESS {
			report.Name = name
		}
		if mem, ret := dev.GetMemoryInfo(); ret == nvml.SUCCESS {
			report.MemoryMB = mem.Total / (1024 * 1024)
		}
	}
	return report
}
