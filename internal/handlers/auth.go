package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/response"
)

// AuthHandler exposes the two-step sign-in and the password reset flow.
type AuthHandler struct {
	auth  *services.AuthService
	users *services.UserService
}

func NewAuthHandler(auth *services.AuthService, users *services.UserService) *AuthHandler {
	return &AuthHandler{auth: auth, users: users}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type verifyCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,otp"`
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	NewPassword string `json:"newPassword" validate:"required,min=6,maxbytes=72"`
	ResetToken  string `json:"resetToken" validate:"required"`
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type resetTokenResponse struct {
	OK         bool      `json:"ok"`
	ResetToken string    `json:"reset_token"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.auth.ValidateCredentials(requestContext(c), req.Email, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// POST /auth/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req verifyCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	result, err := h.auth.CompleteLogin(requestContext(c), req.Email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, tokenResponse{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		ExpiresAt:   result.ExpiresAt,
	})
}

// POST /auth/logout. Session tokens are stateless; clients discard theirs.
func (h *AuthHandler) Logout(c *gin.Context) {
	response.OK(c)
}

// POST /auth/request-password-reset
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.auth.StartPasswordReset(requestContext(c), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// POST /auth/verify-password-reset-otp
func (h *AuthHandler) VerifyPasswordResetOTP(c *gin.Context) {
	var req verifyCodeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	grant, err := h.auth.ConfirmPasswordResetCode(requestContext(c), req.Email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, resetTokenResponse{
		OK:         true,
		ResetToken: grant.Token,
		ExpiresAt:  grant.ExpiresAt,
	})
}

// POST /auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.auth.SetNewPassword(requestContext(c), req.Email, req.NewPassword, req.ResetToken); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		// the account was deleted after the token was issued
		response.Error(c, errors.ErrUnauthorized)
		return
	}
	response.Success(c, http.StatusOK, user)
}
