package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelmgrd/internal/convcache"
	"modelmgrd/pkg/types"
)

// fakeRuntime is an in-memory Runtime with scriptable failures and delays.
type fakeRuntime struct {
	mu        sync.Mutex
	loadCalls map[string]int
	unloads   int

	loadErr   map[string]error
	unloadErr error
	genErr    error
	genText   string
	loadDelay time.Duration

	// Set genStarted/genRelease to make Generate block: it closes genStarted
	// on entry and waits for genRelease before producing tokens.
	genStarted chan struct{}
	genRelease chan struct{}

	generating            int
	unloadedMidGeneration bool
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		loadCalls: make(map[string]int),
		loadErr:   make(map[string]error),
		genText:   "ok",
	}
}

func (r *fakeRuntime) Device() string { return "fake:0" }

func (r *fakeRuntime) Load(ctx context.Context, desc types.ModelDescriptor) (ModelHandle, error) {
	r.mu.Lock()
	r.loadCalls[desc.ID]++
	err := r.loadErr[desc.ID]
	delay := r.loadDelay
	r.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return &fakeHandle{rt: r, id: desc.ID}, nil
}

func (r *fakeRuntime) Unload(ctx context.Context, h ModelHandle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unloads++
	if r.generating > 0 {
		r.unloadedMidGeneration = true
	}
	return r.unloadErr
}

func (r *fakeRuntime) unloadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.unloads
}

func (r *fakeRuntime) loadsFor(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadCalls[id]
}

type fakeHandle struct {
	rt *fakeRuntime
	id string
}

func (h *fakeHandle) Generate(ctx context.Context, prompt string, params GenParams, prior []byte, onToken func(string) error) (string, []byte, error) {
	h.rt.mu.Lock()
	genErr := h.rt.genErr
	text := h.rt.genText
	started := h.rt.genStarted
	release := h.rt.genRelease
	h.rt.generating++
	h.rt.mu.Unlock()
	defer func() {
		h.rt.mu.Lock()
		h.rt.generating--
		h.rt.mu.Unlock()
	}()
	if started != nil {
		close(started)
		<-release
	}
	if genErr != nil {
		return "", nil, genErr
	}
	if onToken != nil {
		for _, tok := range []string{text[:1], text[1:]} {
			if err := onToken(tok); err != nil {
				return "", nil, err
			}
		}
	}
	next := append(append([]byte{}, prior...), []byte(prompt+text)...)
	return text, next, nil
}

// createArtifact writes a small placeholder model file and returns its path.
func createArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return p
}

type testEnv struct {
	mgr   *Manager
	rt    *fakeRuntime
	pub   *MemoryPublisher
	cache *convcache.Cache
	now   time.Time
}

// advance moves the manager clock forward.
func (e *testEnv) advance(d time.Duration) { e.now = e.now.Add(d) }

// newTestEnv builds a manager over the fake runtime with a deterministic
// clock. totalCapacityMB of 0 means unlimited budget; the budget fraction is
// pinned to 1.0 so tests can reason in absolute MB.
func newTestEnv(t *testing.T, descriptors []types.ModelDescriptor, totalCapacityMB int) *testEnv {
	t.Helper()
	env := &testEnv{
		rt:    newFakeRuntime(),
		pub:   NewMemoryPublisher(),
		cache: convcache.New(100, time.Hour, time.Minute, zerolog.Nop()),
		now:   time.Unix(1_700_000_000, 0),
	}
	env.mgr = New(Config{
		Registry:        descriptors,
		Runtime:         env.rt,
		Cache:           env.cache,
		Publisher:       env.pub,
		Logger:          zerolog.Nop(),
		TotalCapacityMB: totalCapacityMB,
		BudgetFraction:  1.0,
	})
	env.mgr.nowFn = func() time.Time { return env.now }
	env.mgr.predictor.nowFn = env.mgr.nowFn
	return env
}

func (e *testEnv) usedMB() int {
	e.mgr.mu.Lock()
	defer e.mgr.mu.Unlock()
	return e.mgr.budget.usedMB
}

func (e *testEnv) statusOf(t *testing.T, id string) types.ModelStatus {
	t.Helper()
	v, err := e.mgr.GetModel(id)
	if err != nil {
		t.Fatalf("GetModel(%s): %v", id, err)
	}
	return v.Status
}

var errBoom = errors.New("boom")
