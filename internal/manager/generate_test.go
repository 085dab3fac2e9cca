package manager

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"modelmgrd/pkg/types"
)

func TestGenerateLoadsModelOnDemand(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	env.rt.genText = "hello"

	resp, err := env.mgr.Generate(context.Background(), types.GenerateRequest{Model: "model-a", Prompt: "hi"}, nil, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "hello" {
		t.Fatalf("text = %q, want %q", resp.Text, "hello")
	}
	if got := env.statusOf(t, "model-a"); got != types.StatusOnline {
		t.Fatalf("status = %s, want %s", got, types.StatusOnline)
	}
	// Usage feeds the predictor.
	if got := env.mgr.Predict(); len(got) != 1 || got[0] != "model-a" {
		t.Fatalf("predict = %v, want [model-a]", got)
	}
}

func TestGenerateUsesDefaultModel(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	env.mgr.defaultModel = "model-b"

	resp, err := env.mgr.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"}, nil, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Model != "model-b" {
		t.Fatalf("model = %s, want model-b", resp.Model)
	}
}

func TestGenerateWithoutModelOrDefault(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	_, err := env.mgr.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"}, nil, nil)
	if !IsModelNotFound(err) {
		t.Fatalf("err = %v, want model not found", err)
	}
}

func TestGeneratePropagatesBudgetRejection(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 2500)
	ctx := context.Background()
	if err := env.mgr.Load(ctx, "model-a"); err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err := env.mgr.Generate(ctx, types.GenerateRequest{Model: "model-b", Prompt: "hi"}, nil, nil)
	if !IsBudgetExceeded(err) {
		t.Fatalf("err = %v, want budget exceeded", err)
	}
}

func TestGenerateRuntimeFailure(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	env.rt.genErr = errBoom

	_, err := env.mgr.Generate(context.Background(), types.GenerateRequest{Model: "model-a", Prompt: "hi"}, nil, nil)
	if !IsRuntimeGeneration(err) {
		t.Fatalf("err = %v, want runtime generation error", err)
	}
	// The model stays online; the failure was in decoding, not residency.
	if got := env.statusOf(t, "model-a"); got != types.StatusOnline {
		t.Fatalf("status = %s, want %s", got, types.StatusOnline)
	}
}

func TestGenerateConversationCacheRoundTrip(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	ctx := context.Background()
	req := types.GenerateRequest{Model: "model-a", Prompt: "hi", ConversationID: "conv-1"}

	first, err := env.mgr.Generate(ctx, req, nil, nil)
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	if first.CacheHit {
		t.Fatal("first turn reported a cache hit")
	}

	second, err := env.mgr.Generate(ctx, req, nil, nil)
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if !second.CacheHit {
		t.Fatal("second turn missed the conversation cache")
	}
	if second.ConversationID != "conv-1" {
		t.Fatalf("conversation id = %q, want conv-1", second.ConversationID)
	}
}

func TestUnloadInvalidatesConversationCache(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	ctx := context.Background()
	req := types.GenerateRequest{Model: "model-a", Prompt: "hi", ConversationID: "conv-1"}
	if _, err := env.mgr.Generate(ctx, req, nil, nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if env.cache.Len() != 1 {
		t.Fatalf("cache entries = %d, want 1", env.cache.Len())
	}

	if err := env.mgr.Unload(ctx, "model-a"); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if env.cache.Len() != 0 {
		t.Fatalf("cache entries after unload = %d, want 0", env.cache.Len())
	}

	resp, err := env.mgr.Generate(ctx, req, nil, nil)
	if err != nil {
		t.Fatalf("generate after unload: %v", err)
	}
	if resp.CacheHit {
		t.Fatal("cache hit reported after the model's entries were invalidated")
	}
}

func TestGenerateStreamsNDJSONTokens(t *testing.T) {
	env := newTestEnv(t, twoModelDescriptors(t), 0)
	env.rt.genText = "ab"
	var buf bytes.Buffer
	flushed := 0

	resp, err := env.mgr.Generate(context.Background(),
		types.GenerateRequest{Model: "model-a", Prompt: "hi", Stream: true},
		&buf, func() { flushed++ })
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != "ab" {
		t.Fatalf("text = %q, want %q", resp.Text, "ab")
	}
	if flushed != 2 {
		t.Fatalf("flush calls = %d, want 2", flushed)
	}

	var tokens []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var line struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad stream line %q: %v", sc.Text(), err)
		}
		tokens = append(tokens, line.Token)
	}
	if len(tokens) != 2 || tokens[0]+tokens[1] != "ab" {
		t.Fatalf("streamed tokens = %v, want [a b]", tokens)
	}
}
