package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"modelmgrd/internal/manager"
	"modelmgrd/pkg/types"
)

// fakeService scripts the manager surface for handler tests.
type fakeService struct {
	views   map[string]types.ModelStateView
	order   []string
	loadErr map[string]error

	unloadErr error
	genResp   types.GenerateResponse
	genErr    error
	genTokens []string

	selectID   string
	selectErr  error
	predictIDs []string
	usageErr   error
	ready      bool

	loaded   []string
	unloaded []string
}

func newFakeService() *fakeService {
	return &fakeService{
		views:   make(map[string]types.ModelStateView),
		loadErr: make(map[string]error),
		ready:   true,
	}
}

func (s *fakeService) addModel(id string, status types.ModelStatus) {
	s.views[id] = types.ModelStateView{
		ModelDescriptor: types.ModelDescriptor{ID: id, Name: id},
		Status:          status,
	}
	s.order = append(s.order, id)
}

func (s *fakeService) ListModels() []types.ModelStateView {
	out := make([]types.ModelStateView, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.views[id])
	}
	return out
}

func (s *fakeService) GetModel(id string) (types.ModelStateView, error) {
	v, ok := s.views[id]
	if !ok {
		return types.ModelStateView{}, manager.ErrModelNotFound(id)
	}
	return v, nil
}

func (s *fakeService) Status() types.StatusResponse {
	return types.StatusResponse{Models: s.ListModels(), Device: "fake:0"}
}

func (s *fakeService) Load(ctx context.Context, id string) error {
	if _, ok := s.views[id]; !ok {
		return manager.ErrModelNotFound(id)
	}
	if err := s.loadErr[id]; err != nil {
		return err
	}
	s.loaded = append(s.loaded, id)
	return nil
}

func (s *fakeService) Unload(ctx context.Context, id string) error {
	if _, ok := s.views[id]; !ok {
		return manager.ErrModelNotFound(id)
	}
	if s.unloadErr != nil {
		return s.unloadErr
	}
	s.unloaded = append(s.unloaded, id)
	return nil
}

func (s *fakeService) Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) (types.GenerateResponse, error) {
	if s.genErr != nil {
		return types.GenerateResponse{}, s.genErr
	}
	if w != nil {
		for _, tok := range s.genTokens {
			b, _ := json.Marshal(struct {
				Token string `json:"token"`
			}{Token: tok})
			w.Write(append(b, '\n'))
			if flush != nil {
				flush()
			}
		}
	}
	resp := s.genResp
	if resp.Model == "" {
		resp.Model = req.Model
	}
	resp.ConversationID = req.ConversationID
	return resp, nil
}

func (s *fakeService) SelectModel(taskType string, minContextSize int) (string, error) {
	if s.selectErr != nil {
		return "", s.selectErr
	}
	return s.selectID, nil
}

func (s *fakeService) RecordUsage(id string) error { return s.usageErr }
func (s *fakeService) Predict() []string           { return s.predictIDs }
func (s *fakeService) Ready() bool                 { return s.ready }

func (s *fakeService) Preload(ctx context.Context, ids []string) types.PreloadResponse {
	resp := types.PreloadResponse{}
	for _, id := range ids {
		if err := s.Load(ctx, id); err != nil {
			if resp.Failed == nil {
				resp.Failed = make(map[string]string)
			}
			resp.Failed[id] = string(manager.KindOf(err))
			continue
		}
		resp.Loaded = append(resp.Loaded, id)
	}
	return resp
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeErrorResponse(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorResponse {
	t.Helper()
	var e types.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return e
}

func TestListModels(t *testing.T) {
	svc := newFakeService()
	svc.addModel("model-a", types.StatusOnline)
	svc.addModel("model-b", types.StatusAvailable)
	rec := doJSON(t, NewMux(svc), http.MethodGet, "/v1/models", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp types.ModelsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Models) != 2 || resp.Models[0].ID != "model-a" {
		t.Fatalf("models = %+v", resp.Models)
	}
}

func TestGetModelNotFound(t *testing.T) {
	rec := doJSON(t, NewMux(newFakeService()), http.MethodGet, "/v1/models/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if e := decodeErrorResponse(t, rec); e.Kind != string(manager.KindModelNotFound) {
		t.Fatalf("kind = %q, want model_not_found", e.Kind)
	}
}

func TestLoadEndpointErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"budget exceeded", manager.ErrBudgetExceeded("model-a", 2000, 500), http.StatusInsufficientStorage},
		{"artifact missing", manager.ErrArtifactMissing("model-a", "/missing.gguf"), http.StatusNotFound},
		{"runtime failure", manager.ErrRuntime(manager.KindRuntimeLoad, "model-a", io.ErrUnexpectedEOF), http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newFakeService()
			svc.addModel("model-a", types.StatusAvailable)
			svc.loadErr["model-a"] = tc.err
			rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/models/model-a/load", "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestLoadEndpointSuccessReturnsView(t *testing.T) {
	svc := newFakeService()
	svc.addModel("model-a", types.StatusOnline)
	rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/models/model-a/load", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var v types.ModelStateView
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.ID != "model-a" || v.Status != types.StatusOnline {
		t.Fatalf("view = %+v", v)
	}
	if len(svc.loaded) != 1 {
		t.Fatalf("service load calls = %d, want 1", len(svc.loaded))
	}
}

func TestGenerateRequiresPrompt(t *testing.T) {
	svc := newFakeService()
	rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/generate", `{"model_id":"m"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateRejectsWrongContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader("prompt=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	NewMux(newFakeService()).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestGenerateBuffered(t *testing.T) {
	svc := newFakeService()
	svc.genResp = types.GenerateResponse{Model: "model-a", Text: "hello"}
	rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/generate",
		`{"model_id":"model-a","prompt":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp types.GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "hello" {
		t.Fatalf("text = %q, want hello", resp.Text)
	}
}

func TestGenerateStreamingNDJSON(t *testing.T) {
	svc := newFakeService()
	svc.genTokens = []string{"hel", "lo"}
	svc.genResp = types.GenerateResponse{Model: "model-a", Text: "hello"}

	req := httptest.NewRequest(http.MethodPost, "/v1/generate",
		strings.NewReader(`{"model_id":"model-a","prompt":"hi","stream":true}`))
	req.Header.Set("Content-Type", "application/json")
	// Skip Compress so the recorder body is readable plain text.
	req.Header.Del("Accept-Encoding")
	rec := httptest.NewRecorder()
	NewMux(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type = %q", ct)
	}

	var lines []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		lines = append(lines, m)
	}
	if len(lines) != 3 {
		t.Fatalf("stream lines = %d, want 2 tokens + done", len(lines))
	}
	last := lines[len(lines)-1]
	if done, _ := last["done"].(bool); !done {
		t.Fatalf("final line = %v, want done marker", last)
	}
}

func TestSelectRequiresTaskType(t *testing.T) {
	rec := doJSON(t, NewMux(newFakeService()), http.MethodPost, "/v1/select", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSelectNoCapableModel(t *testing.T) {
	svc := newFakeService()
	svc.selectErr = manager.ErrModelNotFound("capability vision")
	rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/select", `{"task_type":"vision"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestSelectSuccess(t *testing.T) {
	svc := newFakeService()
	svc.selectID = "chat-large"
	rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/select",
		`{"task_type":"chat","context_size":8192}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.SelectResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ModelID != "chat-large" {
		t.Fatalf("model_id = %q", resp.ModelID)
	}
}

func TestPreloadEndpoint(t *testing.T) {
	svc := newFakeService()
	svc.addModel("model-a", types.StatusAvailable)
	rec := doJSON(t, NewMux(svc), http.MethodPost, "/v1/preload",
		`{"model_ids":["model-a","ghost"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.PreloadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Loaded) != 1 || resp.Loaded[0] != "model-a" {
		t.Fatalf("loaded = %v", resp.Loaded)
	}
	if resp.Failed["ghost"] != string(manager.KindModelNotFound) {
		t.Fatalf("failed = %v", resp.Failed)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	svc := newFakeService()
	mux := NewMux(svc)

	if rec := doJSON(t, mux, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	if rec := doJSON(t, mux, http.MethodGet, "/readyz", ""); rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d, want 200", rec.Code)
	}
	svc.ready = false
	if rec := doJSON(t, mux, http.MethodGet, "/readyz", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz = %d, want 503", rec.Code)
	}
}

func TestPredictEndpointReturnsEmptyArray(t *testing.T) {
	rec := doJSON(t, NewMux(newFakeService()), http.MethodGet, "/v1/predict", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"model_ids":[]}` {
		t.Fatalf("body = %q, want empty array not null", got)
	}
}
