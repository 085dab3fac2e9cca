package types

// ModelStatus is the lifecycle status of a registered model.
type ModelStatus string

const (
	// StatusAvailable means the artifact is registered but not resident.
	StatusAvailable ModelStatus = "available"
	// StatusLoading means a load is in flight.
	StatusLoading ModelStatus = "loading"
	// StatusOnline means the model is resident and can serve generations.
	StatusOnline ModelStatus = "online"
	// StatusUnloading means an unload is in flight.
	StatusUnloading ModelStatus = "unloading"
	// StatusFailed means the last load or unload attempt failed.
	StatusFailed ModelStatus = "failed"
)

// ModelDescriptor describes a loadable model artifact. Descriptors are
// immutable once registered; live status is tracked separately by the manager.
type ModelDescriptor struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" yaml:"id" toml:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" yaml:"name" toml:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" yaml:"path" toml:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Task-type tags this model can serve (e.g., chat, code, embedding).
	// example: ["chat","code"]
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities" toml:"capabilities"`
	// Maximum context window in tokens.
	// example: 4096
	ContextLength int `json:"context_length,omitempty" yaml:"context_length" toml:"context_length" example:"4096"`
	// Estimated VRAM required when resident, in MB.
	// example: 2250
	EstVRAMMB int `json:"est_vram_mb,omitempty" yaml:"est_vram_mb" toml:"est_vram_mb" example:"2250"`
	// Layers to offload to the GPU.
	// example: 32
	NGPULayers int `json:"n_gpu_layers,omitempty" yaml:"n_gpu_layers" toml:"n_gpu_layers" example:"32"`
	// CPU threads for inference.
	// example: 8
	NThreads int `json:"n_threads,omitempty" yaml:"n_threads" toml:"n_threads" example:"8"`
	// Idle seconds before the reaper may unload this model. 0 uses the
	// manager-wide default.
	// example: 300
	IdleTimeoutSeconds int `json:"idle_timeout_seconds,omitempty" yaml:"idle_timeout_seconds" toml:"idle_timeout_seconds" example:"300"`
	// Tie-break hint when several models match a selection; higher wins only
	// as documented by the registry, registration order stays authoritative.
	// example: 10
	Priority int `json:"priority,omitempty" yaml:"priority" toml:"priority" example:"10"`
}

// HasCapability reports whether the descriptor advertises the given task type.
func (d ModelDescriptor) HasCapability(taskType string) bool {
	for _, c := range d.Capabilities {
		if c == taskType {
			return true
		}
	}
	return false
}
