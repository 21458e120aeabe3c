package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hubd/internal/backend"
	"hubd/internal/discovery"
	"hubd/internal/hub"
	"hubd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Resolve(ctx context.Context, req types.ResolveRequest) (types.DiscoveryResult, error)
	Pull(ctx context.Context, req types.PullRequest) (types.DiscoveryResult, string, error)
	CachedModels() ([]types.CachedModel, error)
	DeleteModel(repoID string) (bool, error)
	Backends() types.BackendsResponse
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
		models, err := svc.CachedModels()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, types.ModelsResponse{Models: models})
	})

	r.Delete("/models/{org}/{name}", func(w http.ResponseWriter, r *http.Request) {
		repoID := chi.URLParam(r, "org") + "/" + chi.URLParam(r, "name")
		deleted, err := svc.DeleteModel(repoID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if !deleted {
			writeJSONError(w, http.StatusNotFound, "model not cached: "+repoID)
			return
		}
		writeJSON(w, map[string]any{"deleted": repoID})
	})

	r.Post("/resolve", func(w http.ResponseWriter, r *http.Request) {
		var req types.ResolveRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.RepoID) == "" {
			writeJSONError(w, http.StatusBadRequest, "repo_id is required")
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		// Join server base context with request context so shutdown cancels work too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		result, err := svc.Resolve(joinedCtx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := mapError(err)
			writeJSONError(w, status, err.Error())
			logRequestEnd(r, lvl, "resolve", req.RepoID, status, start, err)
			return
		}
		writeJSON(w, types.ResolveResponse{Result: result})
		logRequestEnd(r, lvl, "resolve", req.RepoID, http.StatusOK, start, nil)
	})

	r.Post("/pull", func(w http.ResponseWriter, r *http.Request) {
		var req types.PullRequest
		if !decodeJSONBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.RepoID) == "" {
			writeJSONError(w, http.StatusBadRequest, "repo_id is required")
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		result, dir, err := svc.Pull(joinedCtx, req)
		if err != nil {
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			status := mapError(err)
			writeJSONError(w, status, err.Error())
			logRequestEnd(r, lvl, "pull", req.RepoID, status, start, err)
			return
		}
		writeJSON(w, types.PullResponse{Result: result, SnapshotDir: dir})
		logRequestEnd(r, lvl, "pull", req.RepoID, http.StatusOK, start, nil)
	})

	r.Get("/backends", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Backends())
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// decodeJSONBody enforces the JSON content type and body size limit before
// decoding. Returns false if a response has already been written.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// mapError translates well-known service errors to HTTP status codes.
func mapError(err error) int {
	switch {
	case hub.IsNotFound(err), discovery.IsModelNotFound(err):
		return http.StatusNotFound
	case hub.IsAuthRequired(err):
		return http.StatusUnauthorized
	case backend.IsNoUsableBackend(err):
		return http.StatusServiceUnavailable
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

func logRequestEnd(r *http.Request, lvl LogLevel, op, repoID string, status int, start time.Time, err error) {
	if lvl < LevelInfo || zlog == nil {
		return
	}
	z := zlog.Info().Str("op", op).Str("repo", repoID).Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		z = z.Str("request_id", rid)
	}
	z.Err(err).Msg("request end")
}
