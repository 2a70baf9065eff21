package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/pkg/errors"
	"github.com/charlesng35/skycast/pkg/response"
)

// UserHandler serves registration and self-service account management.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

type registerRequest struct {
	Name     string `json:"name" validate:"notblank,max=120"`
	Email    string `json:"email" validate:"required,email,max=320"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
	Location string `json:"location" validate:"max=200"`
	TempUnit string `json:"tempUnit" validate:"omitempty,oneof=F C"`
	WindUnit string `json:"windUnit" validate:"omitempty,oneof=mph kmh"`
}

type updateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=120"`
	Location *string `json:"location" validate:"omitempty,max=200"`
	TempUnit *string `json:"tempUnit" validate:"omitempty,oneof=F C"`
	WindUnit *string `json:"windUnit" validate:"omitempty,oneof=mph kmh"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6,maxbytes=72"`
}

// POST /users
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.users.Create(requestContext(c), services.CreateUserInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Location: req.Location,
		TempUnit: req.TempUnit,
		WindUnit: req.WindUnit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// GET /users/:id
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := h.self(c)
	if !ok {
		return
	}
	user, err := h.users.GetByID(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// PATCH /users/:id
func (h *UserHandler) Update(c *gin.Context) {
	userID, ok := h.self(c)
	if !ok {
		return
	}
	var req updateUserRequest
	if !bindAndValidate(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(requestContext(c), userID, services.UpdateProfileInput{
		Name:     req.Name,
		Location: req.Location,
		TempUnit: req.TempUnit,
		WindUnit: req.WindUnit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := h.self(c)
	if !ok {
		return
	}
	if err := h.users.Delete(requestContext(c), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// POST /users/:id/password
func (h *UserHandler) ChangePassword(c *gin.Context) {
	userID, ok := h.self(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.users.ChangePassword(requestContext(c), userID, req.CurrentPassword, req.NewPassword); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}

// self allows a request only when :id names the caller.
func (h *UserHandler) self(c *gin.Context) (string, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return "", false
	}
	if c.Param("id") != userID {
		response.Error(c, errors.ErrForbidden)
		return "", false
	}
	return userID, true
}
