package httpapi

import (
	"encoding/json"
	"net/http"

	"modelmgrd/internal/manager"
	"modelmgrd/pkg/types"
)

// statusForKind maps a manager failure kind to an HTTP status code.
func statusForKind(kind manager.Kind) int {
	switch kind {
	case manager.KindModelNotFound, manager.KindArtifactMissing:
		return http.StatusNotFound
	case manager.KindBudgetExceeded:
		return http.StatusInsufficientStorage
	case manager.KindUnknownAction:
		return http.StatusBadRequest
	case manager.KindRuntimeLoad, manager.KindRuntimeUnload, manager.KindRuntimeGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError classifies a manager error and writes the JSON payload.
func writeError(w http.ResponseWriter, err error) {
	kind := manager.KindOf(err)
	writeJSONError(w, statusForKind(kind), string(kind), err.Error())
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Kind: kind, Code: status})
}
