package httpapi

import (
	"context"
	"encoding/json"

	"modelmgrd/internal/manager"
	"modelmgrd/pkg/types"
)

// Dispatch executes one action-keyed request against the service and wraps
// the outcome in a typed result. The switch is exhaustive over the supported
// action set; anything else is an unknown_action failure rather than a silent
// no-op.
func Dispatch(ctx context.Context, svc Service, req types.ActionRequest) types.ActionResult {
	switch req.Action {
	case types.ActionLoadModel:
		if err := svc.Load(ctx, req.ModelID); err != nil {
			return failure(err)
		}
		return success(map[string]string{"model_id": req.ModelID})

	case types.ActionUnloadModel:
		if err := svc.Unload(ctx, req.ModelID); err != nil {
			return failure(err)
		}
		return success(map[string]string{"model_id": req.ModelID})

	case types.ActionGenerateText:
		if req.Generate == nil {
			return failure(manager.ErrUnknownAction("generate_text without generate payload"))
		}
		// The action surface is request/response; no token streaming.
		resp, err := svc.Generate(ctx, *req.Generate, nil, nil)
		if err != nil {
			return failure(err)
		}
		return success(resp)

	case types.ActionListModels:
		return success(types.ModelsResponse{Models: svc.ListModels()})

	case types.ActionSelectModel:
		id, err := svc.SelectModel(req.TaskType, req.ContextSize)
		if err != nil {
			return failure(err)
		}
		return success(types.SelectResponse{ModelID: id})

	case types.ActionRecordUsage:
		if err := svc.RecordUsage(req.ModelID); err != nil {
			return failure(err)
		}
		return success(map[string]string{"model_id": req.ModelID})

	case types.ActionPredictModels:
		ids := svc.Predict()
		if ids == nil {
			ids = []string{}
		}
		return success(types.PredictResponse{ModelIDs: ids})

	case types.ActionPreloadModels:
		return success(svc.Preload(ctx, req.ModelIDs))

	case types.ActionGetStatus:
		return success(svc.Status())

	default:
		return failure(manager.ErrUnknownAction(string(req.Action)))
	}
}

func success(payload any) types.ActionResult {
	b, err := json.Marshal(payload)
	if err != nil {
		return failure(err)
	}
	return types.ActionResult{OK: true, Payload: b}
}

func failure(err error) types.ActionResult {
	return types.ActionResult{
		OK:        false,
		ErrorKind: string(manager.KindOf(err)),
		Error:     err.Error(),
	}
}
