package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/skycast/internal/services"
	"github.com/charlesng35/skycast/pkg/response"
)

type CityHandler struct {
	cities *services.CityService
}

func NewCityHandler(cities *services.CityService) *CityHandler {
	return &CityHandler{cities: cities}
}

type cityRequest struct {
	Name string `json:"name" validate:"notblank,max=200"`
}

// POST /city
func (h *CityHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req cityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	city, err := h.cities.Create(requestContext(c), userID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, city)
}

// GET /city
func (h *CityHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	cities, err := h.cities.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, cities, len(cities))
}

// GET /city/:id
func (h *CityHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	city, err := h.cities.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, city)
}

// PATCH /city/:id
func (h *CityHandler) Update(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req cityRequest
	if !bindAndValidate(c, &req) {
		return
	}
	city, err := h.cities.Rename(requestContext(c), userID, c.Param("id"), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, city)
}

// DELETE /city/:id
func (h *CityHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	if err := h.cities.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c)
}
