package manager

import (
	"context"

	"modelmgrd/pkg/types"
)

// Runtime abstracts the inference backend the Manager loads models into.
// Concrete implementations (e.g., llama.cpp) satisfy this interface; tests
// use an in-memory fake.
type Runtime interface {
	// Load makes the model resident and returns a handle for it. Blocking;
	// the Manager calls it outside its lock.
	Load(ctx context.Context, desc types.ModelDescriptor) (ModelHandle, error)
	// Unload releases a handle returned by Load.
	Unload(ctx context.Context, h ModelHandle) error
	// Device names the device models are loaded onto (e.g., "cuda:0", "cpu").
	Device() string
}

// ModelHandle is a resident model able to serve generations.
type ModelHandle interface {
	// Generate produces a completion. prior is opaque per-conversation state
	// from an earlier call (nil for a fresh conversation); the returned next
	// state supersedes it. onToken, when non-nil, receives tokens as they are
	// produced; returning an error from it stops generation.
	Generate(ctx context.Context, prompt string, params GenParams, prior []byte, onToken func(string) error) (text string, next []byte, err error)
}

// GenParams captures generation parameters passed to the runtime.
type GenParams struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	TopP         float64
	Stop         []string
	NThreads     int
}
