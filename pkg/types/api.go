package types

// GenerateRequest represents a text-generation request payload.
type GenerateRequest struct {
	// Model identifier. If empty, the server default is used.
	// example: tinyllama-q4
	Model string `json:"model_id,omitempty" example:"tinyllama-q4"`
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Optional system prompt prepended to the conversation.
	SystemPrompt string `json:"system_prompt,omitempty"`
	// If true, stream tokens as NDJSON. When false, the response is a single JSON object.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["\n\n","END"]
	Stop []string `json:"stop,omitempty"`
	// Optional conversation id enabling reuse of cached per-conversation state.
	// example: 7f9c2ba4-9a6d-4b7e-8f1a-2c3d4e5f6a7b
	ConversationID string `json:"conversation_id,omitempty" example:"7f9c2ba4-9a6d-4b7e-8f1a-2c3d4e5f6a7b"`
}

// GenerateResponse is the non-streaming generation result.
type GenerateResponse struct {
	Model string `json:"model_id"`
	// Generated completion text.
	Text string `json:"text"`
	// Conversation id the per-conversation state was stored under. Set when
	// the request carried one or the server minted one.
	ConversationID string `json:"conversation_id,omitempty"`
	// True when cached conversation state seeded this generation.
	CacheHit bool `json:"cache_hit"`
}

// ModelsResponse wraps the list returned by list_models.
type ModelsResponse struct {
	Models []ModelStateView `json:"models"`
}

// ModelStateView joins a descriptor with a snapshot of its live state.
type ModelStateView struct {
	ModelDescriptor
	// Current lifecycle status.
	// example: online
	Status ModelStatus `json:"status" example:"online"`
	// VRAM attributed to this model while online, in MB.
	// example: 2250
	VRAMUsedMB int `json:"vram_used_mb" example:"2250"`
	// Last time this model served a request (unix seconds, 0 = never).
	// example: 1700000000
	LastUsedUnix int64 `json:"last_used_unix" example:"1700000000"`
	// Number of successful loads over the process lifetime.
	// example: 3
	LoadCount int `json:"load_count" example:"3"`
}

// StatusResponse is returned by get_status.
type StatusResponse struct {
	// Number of models currently online.
	// example: 2
	LoadedCount int `json:"loaded_count" example:"2"`
	// VRAM attributed to online models, in MB.
	// example: 4250
	VRAMUsedMB int `json:"vram_used_mb" example:"4250"`
	// VRAM budget in MB (capacity * fraction).
	// example: 6553
	VRAMBudgetMB int `json:"vram_budget_mb" example:"6553"`
	// Reserved floor kept free inside the budget, in MB.
	// example: 512
	MinFreeMB int `json:"min_free_mb" example:"512"`
	// Device the runtime loads onto.
	// example: cuda:0
	Device string `json:"device" example:"cuda:0"`
	// Per-model snapshots.
	Models []ModelStateView `json:"models"`
	// Models currently loading.
	LoadingCount int `json:"loading_count"`
	// Models currently unloading.
	UnloadingCount int `json:"unloading_count"`
	// Total successful loads since start.
	LoadsTotal uint64 `json:"loads_total"`
	// Total reaper/unload evictions since start.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Conversation cache entries currently held.
	CacheEntries int `json:"cache_entries"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}

// SelectRequest asks for the best model for a task type.
type SelectRequest struct {
	// Required task-type capability tag.
	// example: code
	TaskType string `json:"task_type" example:"code"`
	// Optional minimum context window.
	// example: 8192
	ContextSize int `json:"context_size,omitempty" example:"8192"`
}

// SelectResponse carries the selected model id.
type SelectResponse struct {
	ModelID string `json:"model_id"`
}

// PredictResponse carries the usage-predictor output, most likely first.
type PredictResponse struct {
	ModelIDs []string `json:"model_ids"`
}

// PreloadRequest asks for a best-effort preload of the given models.
type PreloadRequest struct {
	ModelIDs []string `json:"model_ids"`
}

// PreloadResponse reports the per-model outcome of a preload attempt.
type PreloadResponse struct {
	// Models that were loaded or already online.
	Loaded []string `json:"loaded"`
	// Model id -> error kind for models that could not be loaded.
	Failed map[string]string `json:"failed,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: model not found: tinyllama-q4
	Error string `json:"error" example:"model not found: tinyllama-q4"`
	// Stable machine-readable error kind.
	// example: model_not_found
	Kind string `json:"kind,omitempty" example:"model_not_found"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}
