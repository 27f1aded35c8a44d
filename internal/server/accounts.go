package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"bookbazaar/internal/app"
	"bookbazaar/pkg/domain"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type sellerResponse struct {
	Message string        `json:"message,omitempty"`
	User    domain.Seller `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "auth.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "auth.register", "fail", "reason", "invalid_json")
		invalidJSON(w)
		return
	}
	seller, token, err := s.app.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.register", "fail", "reason", err.Error())
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.register", "success", "seller_id", seller.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, sellerResponse{Message: "Registration successful", User: seller})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "auth.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "auth.login", "fail", "reason", "invalid_json")
		invalidJSON(w)
		return
	}
	seller, token, err := s.app.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		reason := "error"
		if errors.Is(err, app.ErrInvalidCredentials) {
			reason = "invalid_credentials"
		}
		s.audit(r, "auth.login", "fail", "reason", reason)
		s.writeAppError(w, r, err)
		return
	}
	s.audit(r, "auth.login", "success", "seller_id", seller.ID)
	s.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, sellerResponse{Message: "Login successful", User: seller})
}

// handleLogout only drops the cookie; issued tokens stay valid until expiry.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	s.clearSessionCookie(w)
	s.audit(r, "auth.logout", "success")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, sellerID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	seller, err := s.app.Me(r.Context(), sellerID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sellerResponse{User: seller})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, sellerID int64) {
	switch r.Method {
	case http.MethodGet:
		profile, err := s.app.Profile(r.Context(), sellerID)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": newProfileView(profile)})
	case http.MethodPut:
		var req profileRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			invalidJSON(w)
			return
		}
		seller, err := s.app.UpdateProfile(r.Context(), sellerID, req.Name, req.Email)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Profile updated successfully",
			"user":    profileRequest{Name: seller.Name, Email: seller.Email},
		})
	default:
		methodNotAllowed(w)
	}
}
