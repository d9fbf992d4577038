package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/keygate/middleware"
)

func (s *Server) setCookie(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.config.Security.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.config.Security.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sessionID string) {
	s.setCookie(w, middleware.SessionCookieName, sessionID, s.config.Session.UserTTL)
}

func (s *Server) setAdminCookie(w http.ResponseWriter, token string) {
	s.setCookie(w, middleware.AdminCookieName, token, s.config.Session.AdminTTL)
}
