package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/keygate"
	"github.com/MrEthical07/keygate/middleware"
)

const adminActor = "admin"

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, flowAdmin, err)
		return
	}

	admin, err := s.engine.AdminLogin(r.Context(), body.Password)
	if err != nil {
		s.writeError(w, r, flowAdmin, err)
		return
	}

	s.setAdminCookie(w, admin.Token)
	writeSuccess(w)
}

func (s *Server) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"authorized": true})
}

func (s *Server) handleGenerateInvite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, flowAdmin, err)
		return
	}

	inv, err := s.engine.IssueInvite(r.Context(), body.Name, adminActor)
	if err != nil {
		s.writeError(w, r, flowAdmin, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expiresAt"`
	}{
		Token:     inv.Token,
		ExpiresAt: inv.ExpiresAt,
	})
}

func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := s.config.Audit.ListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, flowAdmin, keygate.ErrInvalidRequest)
			return
		}
		limit = n
	}

	entries, err := s.engine.AuditLog(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, flowAdmin, err)
		return
	}
	if entries == nil {
		entries = []keygate.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearAuditLog(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearAuditLog(r.Context(), adminActor); err != nil {
		s.writeError(w, r, flowAdmin, err)
		return
	}
	writeSuccess(w)
}

// handleAdminLogout always clears the cookie, even when the session is
// already gone.
func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(middleware.AdminCookieName); err == nil && c.Value != "" {
		if err := s.engine.AdminLogout(r.Context(), c.Value); err != nil {
			s.logger.Warn(r.Context(), "admin logout failed", "err", err)
		}
	}
	s.clearCookie(w, middleware.AdminCookieName)
	writeSuccess(w)
}
