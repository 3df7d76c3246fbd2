package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bytes-zone/beeps/pkg/apierr"
)

// errorBody is the flat JSON envelope every error response uses:
// {"error": "<message>"}. This matches the literal short messages the
// sync protocol specifies word for word, rather than a richer structured
// envelope.
type errorBody struct {
	Error string `json:"error"`
}

// writeError translates err into an HTTP response. Known *apierr.Error
// values write their fixed status and message verbatim; anything else is
// logged with full detail and reported to the caller as a bare 500, never
// leaking internals.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		s.writeJSONError(w, apiErr.Status, apiErr.Message)
		return
	}

	s.Logger.Error("internal server error", "error", err)
	s.writeJSONError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}
