package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/pkg/response"
)

type FavoriteHandler struct {
	favorites *services.FavoriteService
}

func NewFavoriteHandler(favorites *services.FavoriteService) *FavoriteHandler {
	return &FavoriteHandler{favorites: favorites}
}

type createFavoriteRequest struct {
	CityID string `json:"cityId" validate:"notblank"`
	Label  string `json:"label" validate:"max=120"`
}

type updateFavoriteRequest struct {
	Label string `json:"label" validate:"max=120"`
}

// POST /favorites
func (h *FavoriteHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req createFavoriteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	fav, err := h.favorites.Create(requestContext(c), userID, req.CityID, req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, fav)
}

// GET /favorites
func (h *FavoriteHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	favorites, err := h.favorites.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, favorites, len(favorites))
}

// GET /favorites/:id
func (h *FavoriteHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	fav, err := h.favorites.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, fav)
}

// PATCH /favorites/:id
func (h *FavoriteHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req updateFavoriteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	fav, err := h.favorites.UpdateLabel(requestContext(c), userID, c.Param("id"), req.Label)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, fav)
}

// DELETE /favorites/:id
func (h *FavoriteHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.favorites.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}
