package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sekolahku/sims-api/internal/service"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
	"github.com/sekolahku/sims-api/pkg/response"
)

// ConfigurationHandler exposes school configuration endpoints.
type ConfigurationHandler struct {
	configurations *service.ConfigurationService
}

// NewConfigurationHandler constructs ConfigurationHandler.
func NewConfigurationHandler(configurations *service.ConfigurationService) *ConfigurationHandler {
	return &ConfigurationHandler{configurations: configurations}
}

type updateConfigurationRequest struct {
	Value string `json:"value" binding:"required"`
}

// List godoc
// @Summary List school configuration
// @Tags Configuration
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /configurations [get]
func (h *ConfigurationHandler) List(c *gin.Context) {
	items, err := h.configurations.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Get godoc
// @Summary Get configuration entry
// @Tags Configuration
// @Produce json
// @Param key path string true "Configuration key"
// @Success 200 {object} response.Envelope
// @Router /configurations/{key} [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	item, err := h.configurations.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Update godoc
// @Summary Update configuration entry
// @Tags Configuration
// @Accept json
// @Produce json
// @Param key path string true "Configuration key"
// @Param payload body updateConfigurationRequest true "New value"
// @Success 200 {object} response.Envelope
// @Router /configurations/{key} [put]
func (h *ConfigurationHandler) Update(c *gin.Context) {
	var req updateConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	item, err := h.configurations.Update(c.Request.Context(), c.Param("key"), req.Value, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}
