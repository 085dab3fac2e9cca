//go:build !llama

package manager

// This file provides a no-CGO stub for the llama runtime. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real runtime lives in runtime_llama.go (tagged 'llama').

import (
	"context"
	"errors"

	"modelmgrd/pkg/types"
)

var errLlamaNotBuilt = errors.New("llama support not built (missing 'llama' build tag)")

type llamaRuntime struct {
	device string
}

// NewLlamaRuntime returns a runtime that refuses to load models. It avoids
// any mocked behavior in binaries built without CGO support.
func NewLlamaRuntime(device string, ctxSize, threads int) Runtime {
	if device == "" {
		device = "cpu"
	}
	return &llamaRuntime{device: device}
}

func (r *llamaRuntime) Device() string { return r.device }

func (r *llamaRuntime) Load(ctx context.Context, desc types.ModelDescriptor) (ModelHandle, error) {
	return nil, errLlamaNotBuilt
}

func (r *llamaRuntime) Unload(ctx context.Context, h ModelHandle) error { return nil }
