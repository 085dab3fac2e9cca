//go:build llama

package manager

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelmgrd/pkg/types"
)

// llamaRuntime loads GGUF models in-process via go-llama.cpp.
type llamaRuntime struct {
	device  string
	ctxSize int
	threads int
}

// NewLlamaRuntime returns the in-process llama.cpp runtime. ctxSize and
// threads are defaults; descriptors override them per model.
func NewLlamaRuntime(device string, ctxSize, threads int) Runtime {
	if device == "" {
		device = "cpu"
	}
	return &llamaRuntime{device: device, ctxSize: ctxSize, threads: threads}
}

func (r *llamaRuntime) Device() string { return r.device }

func (r *llamaRuntime) Load(ctx context.Context, desc types.ModelDescriptor) (ModelHandle, error) {
	if strings.TrimSpace(desc.Path) == "" {
		return nil, errors.New("model path is empty")
	}
	ctxSize := r.ctxSize
	if desc.ContextLength > 0 {
		ctxSize = desc.ContextLength
	}
	mo := []llama.ModelOption{llama.SetContext(ctxSize)}
	if desc.NGPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(desc.NGPULayers))
	}
	mdl, err := llama.New(desc.Path, mo...)
	if err != nil {
		return nil, err
	}
	threads := r.threads
	if desc.NThreads > 0 {
		threads = desc.NThreads
	}
	return &llamaHandle{model: mdl, threads: threads}, nil
}

func (r *llamaRuntime) Unload(ctx context.Context, h ModelHandle) error {
	lh, ok := h.(*llamaHandle)
	if !ok || lh.model == nil {
		return nil
	}
	lh.model.Free()
	lh.model = nil
	return nil
}

// llamaHandle owns one loaded model.
type llamaHandle struct {
	model   *llama.LLama
	threads int
}

func (h *llamaHandle) Generate(ctx context.Context, prompt string, params GenParams, prior []byte, onToken func(string) error) (string, []byte, error) {
	if h.model == nil {
		return "", nil, errors.New("llama model not initialized")
	}
	// The opaque conversation state is the running transcript; seed the
	// prompt with it so the model sees earlier turns.
	full := prompt
	if len(prior) > 0 {
		full = string(prior) + "\n" + prompt
	}
	if params.SystemPrompt != "" {
		full = params.SystemPrompt + "\n" + full
	}

	h.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				return false
			}
		}
		return true
	})

	text, err := h.model.Predict(full, predictOptions(params, h.threads)...)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, ctx.Err()
		}
		return "", nil, err
	}
	next := []byte(full + text)
	return text, next, nil
}

func predictOptions(params GenParams, threads int) []llama.PredictOption {
	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 128
	}
	if threads <= 0 {
		threads = 4
	}
	po := []llama.PredictOption{
		llama.SetTokens(maxTokens),
		llama.SetThreads(threads),
	}
	if params.Temperature > 0 {
		po = append(po, llama.SetTemperature(float32(params.Temperature)))
	}
	if params.TopP > 0 {
		po = append(po, llama.SetTopP(float32(params.TopP)))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}
