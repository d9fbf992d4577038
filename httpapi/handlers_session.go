package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/keygate"
	"github.com/MrEthical07/keygate/middleware"
)

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	us, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		s.writeError(w, r, flowSession, keygate.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Authenticated bool   `json:"authenticated"`
		DisplayName   string `json:"displayName"`
	}{
		Authenticated: true,
		DisplayName:   us.Principal.DisplayName,
	})
}

// defaultIdentityName is reported by /api/me when no session is present.
const defaultIdentityName = "Agent"

// handleMe reports the display name behind the session cookie. Missing or
// invalid sessions are not an error here; they get the default name.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	name := defaultIdentityName
	if c, err := r.Cookie(middleware.SessionCookieName); err == nil && c.Value != "" {
		p, _, err := s.engine.SessionPrincipal(r.Context(), c.Value)
		switch {
		case err == nil:
			name = p.DisplayName
		case errors.Is(err, keygate.ErrStoreUnavailable), errors.Is(err, keygate.ErrEngineNotReady):
			s.writeError(w, r, flowSession, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.SessionCookieName); err == nil && c.Value != "" {
		if err := s.engine.RevokeSession(r.Context(), c.Value); err != nil {
			s.logger.Warn(r.Context(), "session revoke failed", "err", err)
		}
	}
	s.clearCookie(w, middleware.SessionCookieName)
	writeSuccess(w)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	type healthBody struct {
		Status       string `json:"status"`
		RedisLatency string `json:"redisLatency,omitempty"`
	}
	h := s.engine.Health(ctx)
	if !h.RedisAvailable {
		s.logger.Warn(ctx, "health check failed", "latency", h.RedisLatency)
		writeJSON(w, http.StatusServiceUnavailable, healthBody{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "ok", RedisLatency: h.RedisLatency.String()})
}
