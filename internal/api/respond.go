package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jkhalligan/gala-ticket-platform-sub000/internal/errs"
)

// envelope is the uniform response wrapper. Errors carry the error-kind
// reason alongside the message so clients can branch without string matching.
type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.Logger.Error("API", fmt.Sprintf("Failed to encode response: %v", err))
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data interface{}) {
	h.writeJSON(w, status, envelope{Data: data})
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", message, err))
	} else {
		h.Logger.Warn("API", fmt.Sprintf("%s: %v", message, err))
	}
	h.writeJSON(w, status, envelope{Error: &errorBody{Message: message, Reason: errs.Reason(err)}})
}
