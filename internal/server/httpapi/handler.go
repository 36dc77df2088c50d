package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/registryauth/internal/common"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type statusResponse struct {
	Status          string `json:"status"`
	AuthenticatedAs string `json:"authenticated_as"`
	Role            string `json:"role"`
	Backend         string `json:"backend"`
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, statusCode int, detail string) {
	writeJSON(w, statusCode, detailResponse{Detail: detail})
}

// unauthorized writes a 401 with the re-authentication challenge. All
// not-authenticated outcomes go through here so expired, tampered, and
// revoked tokens are indistinguishable from outside.
func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeDetail(w, http.StatusUnauthorized, detail)
}

// POST /register
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Username == "" || req.Password == "" {
		writeDetail(w, http.StatusBadRequest, "username and password are required")
		return
	}

	s.logger.Info(r.Context(), "Registration request", "username", req.Username)

	user, err := s.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			s.logger.Warn(r.Context(), "Registration conflict", "username", req.Username)
			writeDetail(w, http.StatusBadRequest, "Username already registered")
			return
		}
		s.logger.Error(r.Context(), "Registration failed", "error", err.Error())
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info(r.Context(), "Registered", "username", user.Username)
	writeJSON(w, http.StatusCreated, user)
}

// POST /token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tokens, err := s.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			s.logger.Warn(r.Context(), "Login failed", "username", req.Username)
			unauthorized(w, "Incorrect username or password")
			return
		}
		s.logger.Error(r.Context(), "Login error", "error", err.Error())
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info(r.Context(), "Login successful", "username", req.Username)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "bearer",
	})
}

// POST /refresh
//
// The refresh token rides in the Authorization header the same way an access
// token would, not in the request body.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {

	token, err := bearerToken(r)
	if err != nil {
		unauthorized(w, "Could not validate refresh token")
		return
	}

	tokens, err := s.users.RefreshTokens(r.Context(), token)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) {
			s.logger.Warn(r.Context(), "Refresh rejected")
			unauthorized(w, "Could not validate refresh token")
			return
		}
		s.logger.Error(r.Context(), "Refresh error", "error", err.Error())
		writeDetail(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.logger.Info(r.Context(), "Tokens rotated")
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "bearer",
	})
}

// GET /users/me
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		unauthorized(w, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GET /system/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		unauthorized(w, "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:          "operational",
		AuthenticatedAs: user.Username,
		Role:            user.Role,
		Backend:         "postgresql",
	})
}
