package types

import "encoding/json"

// Action identifies one operation on the manager's request surface. The set
// is closed: dispatchers switch exhaustively over these constants and reject
// anything else instead of degrading to a silent no-op.
type Action string

const (
	ActionLoadModel     Action = "load_model"
	ActionUnloadModel   Action = "unload_model"
	ActionGenerateText  Action = "generate_text"
	ActionListModels    Action = "list_models"
	ActionSelectModel   Action = "select_model"
	ActionRecordUsage   Action = "record_usage"
	ActionPredictModels Action = "predict_models"
	ActionPreloadModels Action = "preload_models"
	ActionGetStatus     Action = "get_status"
)

// Actions lists every supported action, in a stable order.
func Actions() []Action {
	return []Action{
		ActionLoadModel,
		ActionUnloadModel,
		ActionGenerateText,
		ActionListModels,
		ActionSelectModel,
		ActionRecordUsage,
		ActionPredictModels,
		ActionPreloadModels,
		ActionGetStatus,
	}
}

// ActionRequest is the envelope accepted by the action-keyed endpoint.
type ActionRequest struct {
	// Operation to perform.
	// example: load_model
	Action Action `json:"action" example:"load_model"`
	// Model id for model-scoped actions.
	// example: tinyllama-q4
	ModelID string `json:"model_id,omitempty" example:"tinyllama-q4"`
	// Model ids for preload_models.
	ModelIDs []string `json:"model_ids,omitempty"`
	// Task type for select_model.
	TaskType string `json:"task_type,omitempty"`
	// Minimum context window for select_model.
	ContextSize int `json:"context_size,omitempty"`
	// Generation payload for generate_text.
	Generate *GenerateRequest `json:"generate,omitempty"`
}

// ActionResult is the typed envelope returned by the action-keyed endpoint.
// Failures never surface as transport errors; they are classified here.
type ActionResult struct {
	OK bool `json:"ok"`
	// Stable error kind when OK is false.
	// example: budget_exceeded
	ErrorKind string `json:"error_kind,omitempty" example:"budget_exceeded"`
	// Human-readable error message when OK is false.
	Error string `json:"error,omitempty"`
	// Action-specific payload when OK is true.
	Payload json.RawMessage `json:"payload,omitempty"`
}
