package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hubd/internal/backend"
	"hubd/internal/discovery"
	"hubd/internal/hub"
	"hubd/pkg/types"
)

// fakeService scripts the orchestration layer.
type fakeService struct {
	resolveErr error
	pullErr    error
	models     []types.CachedModel
	modelsErr  error
	deleted    bool
	deleteErr  error
	ready      bool
	chain      []types.BackendCandidate
}

func (f *fakeService) Resolve(_ context.Context, req types.ResolveRequest) (types.DiscoveryResult, error) {
	if f.resolveErr != nil {
		return types.DiscoveryResult{}, f.resolveErr
	}
	return types.DiscoveryResult{
		RepoID:       req.RepoID,
		Revision:     "main",
		Architecture: types.ArchSingleModel,
		PrimaryFiles: []string{"model.onnx"},
	}, nil
}

func (f *fakeService) Pull(ctx context.Context, req types.PullRequest) (types.DiscoveryResult, string, error) {
	if f.pullErr != nil {
		return types.DiscoveryResult{}, "", f.pullErr
	}
	res, err := f.Resolve(ctx, types.ResolveRequest{RepoID: req.RepoID})
	return res, "/cache/models--" + strings.ReplaceAll(req.RepoID, "/", "--") + "/snapshots/main", err
}

func (f *fakeService) CachedModels() ([]types.CachedModel, error) { return f.models, f.modelsErr }
func (f *fakeService) DeleteModel(string) (bool, error)           { return f.deleted, f.deleteErr }
func (f *fakeService) Backends() types.BackendsResponse {
	return types.BackendsResponse{Chain: f.chain}
}
func (f *fakeService) Status() types.StatusResponse { return types.StatusResponse{CacheRoot: "/cache"} }
func (f *fakeService) Ready() bool                  { return f.ready }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestResolveSuccess(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := postJSON(t, h, "/resolve", `{"repo_id":"acme/m"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp types.ResolveResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Result.RepoID != "acme/m" || len(resp.Result.PrimaryFiles) != 1 {
		t.Fatalf("result = %+v", resp.Result)
	}
}

func TestResolveValidation(t *testing.T) {
	h := NewMux(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/resolve", strings.NewReader(`{"repo_id":"a/b"}`))
	req.Header.Set("Content-Type", "text/plain")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("bad content type: status = %d", rr.Code)
	}

	if rr := postJSON(t, h, "/resolve", `{not json`); rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid body: status = %d", rr.Code)
	}
	if rr := postJSON(t, h, "/resolve", `{"repo_id":"  "}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("blank repo_id: status = %d", rr.Code)
	}
}

func TestResolveErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"repo not found", hub.ErrNotFound("a/b"), http.StatusNotFound},
		{"no model files", discovery.ErrModelNotFound("a/b"), http.StatusNotFound},
		{"gated repo", hub.ErrAuthRequired("a/b"), http.StatusUnauthorized},
		{"no usable backend", backend.ErrNoUsableBackend("cpu init failed"), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMux(&fakeService{resolveErr: tc.err})
			rr := postJSON(t, h, "/resolve", `{"repo_id":"a/b"}`)
			if rr.Code != tc.want {
				t.Fatalf("status = %d, want %d", rr.Code, tc.want)
			}
			var resp types.ErrorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Code != tc.want || resp.Error == "" {
				t.Fatalf("payload = %+v", resp)
			}
		})
	}
}

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) StatusCode() int { return http.StatusTeapot }

func TestResolveHTTPErrorPassthrough(t *testing.T) {
	h := NewMux(&fakeService{resolveErr: teapotError{}})
	if rr := postJSON(t, h, "/resolve", `{"repo_id":"a/b"}`); rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want HTTPError status", rr.Code)
	}
}

func TestPullSuccess(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := postJSON(t, h, "/pull", `{"repo_id":"acme/m"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	var resp types.PullResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SnapshotDir == "" || resp.Result.RepoID != "acme/m" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestModelsAndDelete(t *testing.T) {
	svc := &fakeService{models: []types.CachedModel{{RepoID: "acme/m", Revision: "main"}}, deleted: true}
	h := NewMux(svc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/models", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /models status = %d", rr.Code)
	}
	var resp types.ModelsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || len(resp.Models) != 1 {
		t.Fatalf("models = %+v, %v", resp.Models, err)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/models/acme/m", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("DELETE status = %d", rr.Code)
	}

	svc.deleted = false
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/models/acme/m", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("DELETE missing status = %d", rr.Code)
	}
}

func TestBackendsEndpoint(t *testing.T) {
	h := NewMux(&fakeService{chain: []types.BackendCandidate{{Kind: types.BackendCpu, ProviderToken: "cpu"}}})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/backends", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp types.BackendsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || len(resp.Chain) != 1 {
		t.Fatalf("backends = %+v, %v", resp, err)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := &fakeService{}
	h := NewMux(svc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz while starting = %d", rr.Code)
	}

	svc.ready = true
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz when ready = %d", rr.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h := NewMux(&fakeService{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp types.StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil || resp.CacheRoot != "/cache" {
		t.Fatalf("status body = %+v, %v", resp, err)
	}
}

func TestBodySizeLimit(t *testing.T) {
	SetMaxBodyBytes(64)
	defer SetMaxBodyBytes(0)
	h := NewMux(&fakeService{})
	big := `{"repo_id":"` + strings.Repeat("x", 256) + `"}`
	if rr := postJSON(t, h, "/resolve", big); rr.Code != http.StatusBadRequest {
		t.Fatalf("oversized body status = %d", rr.Code)
	}
}

func TestMetricsEndpointServes(t *testing.T) {
	h := NewMux(&fakeService{})
	// Prime the request counter so the family appears in the exposition.
	warm := httptest.NewRecorder()
	h.ServeHTTP(warm, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "hubd_http_requests_total") {
		t.Fatalf("metrics exposition missing request counter")
	}
}
