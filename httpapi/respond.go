package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/MrEthical07/keygate"
)

// flow selects the status used for verification failures, which differ
// between registration (400) and sign-in (401).
type flow uint8

const (
	flowAdmin flow = iota
	flowRegister
	flowSignIn
	flowSession
)

type errorBody struct {
	Error      string `json:"error"`
	Type       string `json:"type"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeError maps err onto the HTTP error taxonomy.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, f flow, err error) {
	category := keygate.Category(err)
	body := errorBody{Type: category}
	status := http.StatusInternalServerError

	switch category {
	case keygate.CategoryUnauthorized:
		status, body.Error = http.StatusUnauthorized, "Unauthorized"
	case keygate.CategoryInvalidToken:
		status, body.Error = http.StatusBadRequest, "Invalid or expired token"
		if errors.Is(err, keygate.ErrTokenNotFound) {
			status, body.Error = http.StatusNotFound, "Token not found"
		}
	case keygate.CategoryVerificationFailed:
		status, body.Error = http.StatusUnauthorized, "Verification failed"
		if f == flowRegister {
			status = http.StatusBadRequest
		}
	case keygate.CategoryLocked:
		status = http.StatusLocked
		var locked *keygate.LockedError
		if errors.As(err, &locked) {
			body.RetryAfter = locked.RetryAfterMinutes
		}
		body.Error = fmt.Sprintf("Locked, retry in %d minutes", body.RetryAfter)
	case keygate.CategoryNotFound:
		status, body.Error = http.StatusUnauthorized, "Verification failed"
	case keygate.CategoryInvalidRequest:
		status, body.Error = http.StatusBadRequest, "Invalid request"
	default:
		body.Type = keygate.CategoryInternal
		body.Error = "Internal server error"
		s.logger.Error(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"ip", keygate.ClientIPFromContext(r.Context()),
			"err", err,
		)
	}

	writeJSON(w, status, body)
}

func (s *Server) guardError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeError(w, r, flowSession, err)
}

func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found", Type: keygate.CategoryNotFound})
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", keygate.ErrInvalidRequest, err)
	}
	return nil
}
