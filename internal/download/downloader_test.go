package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"hubd/internal/cache"
	"hubd/pkg/types"
)

// rangeServer serves content with HTTP range support and counts requests.
func rangeServer(t *testing.T, content string) (*httptest.Server, *[]string) {
	t.Helper()
	var ranges []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rng := r.Header.Get("Range")
		ranges = append(ranges, rng)
		if rng == "" {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(content))
			return
		}
		var offset int64
		_, err := fmtSscanfRange(rng, &offset)
		if err != nil || offset > int64(len(content)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if offset == int64(len(content)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write([]byte(content[offset:]))
	}))
	return srv, &ranges
}

func fmtSscanfRange(rng string, offset *int64) (int, error) {
	s := strings.TrimSuffix(strings.TrimPrefix(rng, "bytes="), "-")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	*offset = v
	return 1, nil
}

func TestFetchWritesAtomically(t *testing.T) {
	srv, _ := rangeServer(t, "hello weights")
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "model.onnx")
	d := New("", zerolog.Nop())
	if err := d.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	b, err := os.ReadFile(dest)
	if err != nil || string(b) != "hello weights" {
		t.Fatalf("content = %q, err %v", b, err)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Fatalf(".part must be renamed away after completion")
	}
}

func TestFetchResumesFromPartFile(t *testing.T) {
	content := "0123456789abcdef"
	srv, ranges := rangeServer(t, content)
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(dest+".part", []byte(content[:7]), 0o644); err != nil {
		t.Fatalf("seed part: %v", err)
	}
	d := New("", zerolog.Nop())
	if err := d.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	b, _ := os.ReadFile(dest)
	if string(b) != content {
		t.Fatalf("content = %q, want full file", b)
	}
	if len(*ranges) != 1 || (*ranges)[0] != "bytes=7-" {
		t.Fatalf("ranges = %v, want resume from offset 7", *ranges)
	}
}

func TestFetchRangeAlreadySatisfiedIsComplete(t *testing.T) {
	content := "complete"
	srv, _ := rangeServer(t, content)
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "model.onnx")
	// Part file already holds all the bytes; the 416 answer means done.
	if err := os.WriteFile(dest+".part", []byte(content), 0o644); err != nil {
		t.Fatalf("seed part: %v", err)
	}
	d := New("", zerolog.Nop())
	if err := d.Fetch(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	b, _ := os.ReadFile(dest)
	if string(b) != content {
		t.Fatalf("content = %q", b)
	}
}

func TestFetchCancellationKeepsPartFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(make([]byte, copyBufSize))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		cancel()
		// Keep the body open so the next read observes the canceled context.
		<-r.Context().Done()
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "model.onnx")
	// Seed an empty partial so the on-disk state is identical whether the
	// cancel lands during the request or mid-copy.
	if err := os.WriteFile(dest+".part", nil, 0o644); err != nil {
		t.Fatalf("seed part: %v", err)
	}
	d := New("", zerolog.Nop())
	err := d.Fetch(ctx, srv.URL, dest)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if _, statErr := os.Stat(dest + ".part"); statErr != nil {
		t.Fatalf("canceled download must leave .part for resume: %v", statErr)
	}
	if _, statErr := os.Stat(dest); !os.IsNotExist(statErr) {
		t.Fatalf("canceled download must not produce the final file")
	}
}

func TestFetchServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	d := New("", zerolog.Nop())
	if err := d.Fetch(context.Background(), srv.URL, filepath.Join(t.TempDir(), "f")); err == nil {
		t.Fatalf("download errors must surface, never silently fall back")
	}
}

// staticURLs maps every file to one test server.
type staticURLs struct{ base string }

func (s staticURLs) ResolveURL(_, _, path string) string { return s.base + "/" + path }

func TestPullerSkipsCompleteAndWritesMetadata(t *testing.T) {
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	store, err := cache.NewStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	res := types.DiscoveryResult{
		RepoID:       "org/name",
		Revision:     "main",
		Architecture: types.ArchSingleModel,
		PrimaryFiles: []string{"model.onnx"},
		ConfigFiles:  []string{"config.json"},
	}
	// Pre-seed config.json so only model.onnx needs the network.
	snapDir, _ := store.Resolve("org/name", "main")
	if err := os.WriteFile(filepath.Join(snapDir, "config.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	p := NewPuller(staticURLs{srv.URL}, store, New("", zerolog.Nop()), zerolog.Nop())
	dir, err := p.Pull(context.Background(), res)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if dir != snapDir {
		t.Fatalf("snapshot dir = %q, want %q", dir, snapDir)
	}
	if len(requested) != 1 || requested[0] != "/model.onnx" {
		t.Fatalf("requested = %v, want only the missing file", requested)
	}
	meta, ok := store.ReadMetadata("org/name")
	if !ok || len(meta.Files) != 2 {
		t.Fatalf("metadata = %+v ok=%v", meta, ok)
	}

	// Second pull is a no-op.
	requested = nil
	if _, err := p.Pull(context.Background(), res); err != nil {
		t.Fatalf("repull: %v", err)
	}
	if len(requested) != 0 {
		t.Fatalf("repull requested %v, want none", requested)
	}
}
