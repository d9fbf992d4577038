package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/keygate"
)

func (s *Server) handleRegisterOptions(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, r, flowRegister, keygate.ErrInvalidRequest)
		return
	}

	opts, err := s.engine.BeginRegistration(r.Context(), token)
	if err != nil {
		s.writeError(w, r, flowRegister, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token               string          `json:"token"`
		AttestationResponse json.RawMessage `json:"attestationResponse"`
		Challenge           string          `json:"challenge"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, flowRegister, err)
		return
	}
	if body.Token == "" || len(body.AttestationResponse) == 0 {
		s.writeError(w, r, flowRegister, keygate.ErrInvalidRequest)
		return
	}

	res, err := s.engine.CompleteRegistration(r.Context(), body.Token, body.AttestationResponse, body.Challenge)
	if err != nil {
		s.writeError(w, r, flowRegister, err)
		return
	}

	s.setSessionCookie(w, res.Session.ID)
	writeSuccess(w)
}

func (s *Server) handleSignInOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.engine.BeginAuthentication(r.Context())
	if err != nil {
		s.writeError(w, r, flowSignIn, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AuthResponse json.RawMessage `json:"authResponse"`
		Challenge    string          `json:"challenge"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.writeError(w, r, flowSignIn, err)
		return
	}
	if len(body.AuthResponse) == 0 {
		s.writeError(w, r, flowSignIn, keygate.ErrInvalidRequest)
		return
	}

	res, err := s.engine.CompleteAuthentication(r.Context(), body.AuthResponse, body.Challenge)
	if err != nil {
		s.writeError(w, r, flowSignIn, err)
		return
	}

	s.setSessionCookie(w, res.Session.ID)
	writeSuccess(w)
}
