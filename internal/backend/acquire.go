package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"

	"hubd/internal/common/fsutil"
	"hubd/pkg/types"
)

// DefaultRuntimeBaseURL hosts the native runtime binary sets, one directory
// per provider token and OS.
const DefaultRuntimeBaseURL = "https://huggingface.co/hubd/runtimes/resolve/main"

// completeMarker flags a fully downloaded runtime binary set. Its presence is
// the cache-hit fast path; the set is never mutated after a successful
// download.
const completeMarker = ".complete"

// Fetcher downloads one file, satisfied by download.Downloader.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// runtimeLibraries lists the native libraries required per backend family on
// the given OS.
func runtimeLibraries(kind types.BackendKind, goos string) []string {
	var core string
	switch goos {
	case "windows":
		core = "onnxruntime.dll"
	case "darwin":
		core = "libonnxruntime.dylib"
	default:
		core = "libonnxruntime.so"
	}
	libs := []string{core}
	switch kind {
	case types.BackendCuda12, types.BackendCuda13:
		if goos == "windows" {
			libs = append(libs, "onnxruntime_providers_cuda.dll", "onnxruntime_providers_shared.dll")
		} else {
			libs = append(libs, "libonnxruntime_providers_cuda.so", "libonnxruntime_providers_shared.so")
		}
	case types.BackendDirectML:
		libs = append(libs, "DirectML.dll")
	}
	return libs
}

// Acquirer lazily downloads the native runtime binaries for a backend
// candidate, cached per provider token across processes.
type Acquirer struct {
	dir     string
	baseURL string
	goos    string
	dl      Fetcher
	log     zerolog.Logger
}

// NewAcquirer returns an acquirer storing binary sets under dir. An empty
// baseURL selects DefaultRuntimeBaseURL.
func NewAcquirer(dir, baseURL string, dl Fetcher, log zerolog.Logger) *Acquirer {
	if baseURL == "" {
		baseURL = DefaultRuntimeBaseURL
	}
	return &Acquirer{dir: dir, baseURL: baseURL, goos: runtime.GOOS, dl: dl, log: log}
}

// EnsureBackend makes the binary set for the candidate available locally and
// returns its directory. A set with a completion marker is reused as-is;
// re-download happens only on an explicit cache miss.
func (a *Acquirer) EnsureBackend(ctx context.Context, cand types.BackendCandidate) (string, error) {
	dir := filepath.Join(a.dir, cand.ProviderToken)
	if fsutil.PathExists(filepath.Join(dir, completeMarker)) {
		return dir, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	for _, lib := range runtimeLibraries(cand.Kind, a.goos) {
		url := a.baseURL + "/" + cand.ProviderToken + "/" + a.goos + "/" + lib
		a.log.Info().Str("backend", string(cand.Kind)).Str("lib", lib).Msg("acquiring runtime library")
		if err := a.dl.Fetch(ctx, url, filepath.Join(dir, lib)); err != nil {
			return "", fmt.Errorf("acquire %s runtime: %w", cand.Kind, err)
		}
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, completeMarker), []byte("ok\n"), 0o644); err != nil {
		return "", err
	}
	return dir, nil
}
