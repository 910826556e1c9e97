package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/voice-coach/internal/server/middleware"
	"github.com/jonathan/voice-coach/internal/types"
)

// DraftDropper discards a user's open assessments when their practice context ends.
type DraftDropper interface {
	DropAll(ctx context.Context, owner *types.Practice) error
}

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	userService *UserService
	jwtService  *JWTService
	drafts      DraftDropper
	validator   *validator.Validate
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(userService *UserService, jwtService *JWTService, drafts DraftDropper) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		jwtService:  jwtService,
		drafts:      drafts,
		validator:   validator.New(),
	}
}

// Register handles user registration requests.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.issueToken(w, user, http.StatusCreated)
}

// Login handles user login requests.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.userService.Login(r.Context(), &req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.issueToken(w, user, http.StatusOK)
}

// Logout ends the practice context: the token is revoked and every open
// assessment of the user is dropped.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tokenString, ok := middleware.BearerToken(r)
	if !ok {
		errorJSON(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	claims, err := h.jwtService.ValidateToken(r.Context(), tokenString)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	practice := claims.GetPractice()
	if h.drafts != nil {
		if err := h.drafts.DropAll(r.Context(), practice); err != nil {
			log.Printf("[auth] failed to drop drafts for %s: %v", practice.Email, err)
		}
	}
	if err := h.jwtService.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		writeError(w, err)
		return
	}

	log.Printf("[auth] logged out %s", practice.Email)
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	practice, err := middleware.GetPractice(r)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	user, err := h.userService.GetUser(r.Context(), practice.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// UpdatePassword changes the authenticated user's password.
func (h *AuthHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	practice, err := middleware.GetPractice(r)
	if err != nil {
		errorJSON(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req types.UpdatePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), practice.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (h *AuthHandler) issueToken(w http.ResponseWriter, user *types.User, status int) {
	token, err := h.jwtService.GenerateToken(user)
	if err != nil {
		log.Printf("[auth] failed to generate token: %v", err)
		errorJSON(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	jsonResponse(w, status, types.LoginResponse{User: user, Token: token})
}

// selfValidating requests normalize their fields before validating.
type selfValidating interface {
	Validate() error
}

// decode reads and validates a JSON body.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !decodeBody(w, r, dst) {
		return false
	}
	var err error
	if v, ok := dst.(selfValidating); ok {
		err = v.Validate()
	} else {
		err = h.validator.Struct(dst)
	}
	if err != nil {
		errorJSON(w, http.StatusBadRequest, extractValidationErrors(err))
		return false
	}
	return true
}

// extractValidationErrors extracts validation error messages from validator errors.
func extractValidationErrors(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok && len(validationErrors) > 0 {
		// Return first validation error for simplicity
		ve := validationErrors[0]
		return fmt.Sprintf("validation error: %s - %s", ve.Field(), ve.Tag())
	}
	return "validation error: invalid request"
}
