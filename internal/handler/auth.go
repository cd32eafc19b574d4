package handler

import (
	"log/slog"
	"net/http"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/security/middleware"
	"github.com/ecoterra/siteapi/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *service.AuthService
	rs          *Responder
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, rs *Responder, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		rs:          rs,
		logger:      logger,
	}
}

// LoginRequest accepts either a username or an email
type LoginRequest struct {
	Username string `json:"username" validate:"required_without=Email"`
	Email    string `json:"email"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the body of PUT /api/auth/change-password
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// MeResponse wraps the authenticated user
type MeResponse struct {
	User domain.PublicUser `json:"user"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		h.rs.Error(w, http.StatusBadRequest, "username or email and password are required", "validation_error")
		return
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}

	result, err := h.authService.Login(r.Context(), identifier, req.Password, middleware.ClientIP(r))
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, result)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.rs.Fail(w, r, domain.ErrUnauthorized)
		return
	}
	me, err := h.authService.Me(r.Context(), user.ID)
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, MeResponse{User: me})
}

// ChangePassword handles PUT /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		h.rs.Fail(w, r, domain.ErrUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	if err := validateStruct(req); err != nil {
		h.rs.Fail(w, r, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.Message(w, http.StatusOK, "Password changed successfully")
}
