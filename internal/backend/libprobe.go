package backend

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// sharedLibraryDirs are the locations scanned for system libraries during
// pre-flight, per OS family.
func sharedLibraryDirs(goos string) []string {
	switch goos {
	case "windows":
		return []string{
			os.Getenv("SystemRoot") + `\System32`,
		}
	case "darwin":
		return []string{"/usr/lib", "/System/Library/Frameworks"}
	default:
		return []string{
			"/usr/lib",
			"/usr/lib64",
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/local/cuda/lib64",
		}
	}
}

func cudaDriverLibrary(goos string) string {
	if goos == "windows" {
		return "nvcuda.dll"
	}
	return "libcuda.so.1"
}

func vulkanLoaderLibrary(goos string) string {
	if goos == "windows" {
		return "vulkan-1.dll"
	}
	return "libvulkan.so.1"
}

// probeSharedLibrary reports whether a system library is present in the
// standard search directories or on LD_LIBRARY_PATH.
func probeSharedLibrary(name string) bool {
	dirs := sharedLibraryDirs(runtime.GOOS)
	if extra := os.Getenv("LD_LIBRARY_PATH"); extra != "" {
		dirs = append(dirs, strings.Split(extra, ":")...)
	}
	for _, d := range dirs {
		if d == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(d, name)); err == nil {
			return true
		}
	}
	return false
}
