package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"modelmgrd/pkg/types"
)

// Service defines the manager surface required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelStateView
	GetModel(id string) (types.ModelStateView, error)
	Status() types.StatusResponse
	Load(ctx context.Context, id string) error
	Unload(ctx context.Context, id string) error
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) (types.GenerateResponse, error)
	SelectModel(taskType string, minContextSize int) (string, error)
	RecordUsage(id string) error
	Predict() []string
	Preload(ctx context.Context, ids []string) types.PreloadResponse
	Ready() bool
}

// NewMux builds the HTTP handler exposing the manager operations.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(MetricsMiddleware)
	r.Use(RequestLogger)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, types.ModelsResponse{Models: svc.ListModels()})
		})
		r.Get("/models/{id}", func(w http.ResponseWriter, r *http.Request) {
			v, err := svc.GetModel(chi.URLParam(r, "id"))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
		})
		r.Post("/models/{id}/load", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			if err := svc.Load(ctx, id); err != nil {
				writeError(w, err)
				return
			}
			v, err := svc.GetModel(id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
		})
		r.Post("/models/{id}/unload", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			if err := svc.Unload(ctx, id); err != nil {
				writeError(w, err)
				return
			}
			v, err := svc.GetModel(id)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, v)
		})
		r.Post("/models/{id}/usage", func(w http.ResponseWriter, r *http.Request) {
			if err := svc.RecordUsage(chi.URLParam(r, "id")); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		})
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, svc.Status())
		})
		r.Get("/predict", func(w http.ResponseWriter, r *http.Request) {
			ids := svc.Predict()
			if ids == nil {
				ids = []string{}
			}
			writeJSON(w, http.StatusOK, types.PredictResponse{ModelIDs: ids})
		})
		r.Post("/preload", func(w http.ResponseWriter, r *http.Request) {
			var req types.PreloadRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			writeJSON(w, http.StatusOK, svc.Preload(ctx, req.ModelIDs))
		})
		r.Post("/select", func(w http.ResponseWriter, r *http.Request) {
			var req types.SelectRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			if strings.TrimSpace(req.TaskType) == "" {
				writeJSONError(w, http.StatusBadRequest, "", "task_type is required")
				return
			}
			id, err := svc.SelectModel(req.TaskType, req.ContextSize)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, types.SelectResponse{ModelID: id})
		})
		r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
			handleGenerate(svc, w, r)
		})
		r.Post("/actions", func(w http.ResponseWriter, r *http.Request) {
			var req types.ActionRequest
			if !decodeJSON(w, r, &req) {
				return
			}
			ctx, cancel := joinContexts(serverBaseCtx, r.Context())
			defer cancel()
			writeJSON(w, http.StatusOK, Dispatch(ctx, svc, req))
		})
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
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// handleGenerate serves both streaming (NDJSON) and buffered generation.
func handleGenerate(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "", "prompt is required")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	if !req.Stream {
		resp, err := svc.Generate(ctx, req, nil, nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	resp, err := svc.Generate(ctx, req, w, flush)
	if err != nil {
		// If the client went away, there is nobody to tell.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		writeError(w, err)
		return
	}
	final, _ := json.Marshal(struct {
		Done           bool   `json:"done"`
		Model          string `json:"model_id"`
		ConversationID string `json:"conversation_id,omitempty"`
		CacheHit       bool   `json:"cache_hit"`
	}{Done: true, Model: resp.Model, ConversationID: resp.ConversationID, CacheHit: resp.CacheHit})
	w.Write(append(final, '\n'))
	if flush != nil {
		flush()
	}
}

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// decodeJSON enforces content type and body size, and decodes into dst.
// It writes the error response itself and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "", "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "", "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone; nothing useful left to send.
		return
	}
}
