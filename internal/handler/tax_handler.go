package handler

import (
	"net/http"

	"sattva/internal/middleware"
	"sattva/internal/model"
	"sattva/internal/service"
	"sattva/pkg/pagination"
	"sattva/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type TaxHandler struct {
	taxService service.TaxService
}

func NewTaxHandler(taxService service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/tax-configs")
	tax.Use(middleware.RequireRole(model.RoleAdmin))
	{
		tax.GET("", h.ListConfigs)
		tax.GET("/:id", h.GetConfig)
		tax.POST("", h.CreateConfig)
		tax.POST("/:id/supersede", h.SupersedeConfig)
		tax.POST("/:id/approve", h.ApproveConfig)
		tax.POST("/:id/deactivate", h.DeactivateConfig)
		tax.POST("/:id/preview", h.PreviewCalculation)
	}
}

// ListConfigs returns all tax configurations ordered by effective_from DESC
// @Summary      List tax configurations
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/tax-configs [get]
func (h *TaxHandler) ListConfigs(c *gin.Context) {
	params := pagination.Parse(c)

	configs, total, err := h.taxService.ListConfigs(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"configs": configs,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}

// GetConfig returns one tax configuration with its rules
// @Summary      Get a tax configuration
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {object}  response.Response{data=model.TaxConfiguration}
// @Failure      404  {object}  response.Response
// @Router       /api/tax-configs/{id} [get]
func (h *TaxHandler) GetConfig(c *gin.Context) {
	config, err := h.taxService.GetConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, config))
}

// CreateConfig creates a new tax configuration (version 1)
// @Summary      Create a tax configuration
// @Description  Rejects configurations violating the write invariants (empty rules, inverted ranges).
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateTaxConfigRequest  true  "Tax Configuration"
// @Success      201      {object}  response.Response{data=model.TaxConfiguration}
// @Failure      400      {object}  response.Response
// @Router       /api/tax-configs [post]
func (h *TaxHandler) CreateConfig(c *gin.Context) {
	var req service.CreateTaxConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	config, err := h.taxService.CreateConfig(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, config))
}

// SupersedeConfig replaces a configuration with a new linked version
// @Summary      Supersede a tax configuration
// @Description  Creates version N+1 linked to the prior config and deactivates it. The old version is retained.
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Config ID to supersede"
// @Param        payload  body      service.CreateTaxConfigRequest  true  "Replacement Configuration"
// @Success      201      {object}  response.Response{data=model.TaxConfiguration}
// @Failure      400      {object}  response.Response
// @Router       /api/tax-configs/{id}/supersede [post]
func (h *TaxHandler) SupersedeConfig(c *gin.Context) {
	var req service.CreateTaxConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	config, err := h.taxService.SupersedeConfig(c.Request.Context(), c.Param("id"), req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, config))
}

// ApproveConfig records the four-eyes approval on a configuration
// @Summary      Approve a tax configuration
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {object}  response.Response{data=model.TaxConfiguration}
// @Failure      400  {object}  response.Response
// @Router       /api/tax-configs/{id}/approve [post]
func (h *TaxHandler) ApproveConfig(c *gin.Context) {
	config, err := h.taxService.ApproveConfig(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, config))
}

// DeactivateConfig disables a configuration without deleting it
// @Summary      Deactivate a tax configuration
// @Tags         tax
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Config ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/tax-configs/{id}/deactivate [post]
func (h *TaxHandler) DeactivateConfig(c *gin.Context) {
	if err := h.taxService.DeactivateConfig(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "configuration deactivated"}))
}

type previewRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// PreviewCalculation computes a tax breakdown against a configuration
// @Summary      Preview a tax calculation
// @Description  Runs the configured rules against an amount without touching any booking.
// @Tags         tax
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string          true  "Config ID"
// @Param        payload  body      previewRequest  true  "Amount"
// @Success      200      {object}  response.Response{data=service.TaxResult}
// @Failure      400      {object}  response.Response
// @Router       /api/tax-configs/{id}/preview [post]
func (h *TaxHandler) PreviewCalculation(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "invalid amount: "+err.Error()))
		return
	}

	config, err := h.taxService.GetConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	result, err := service.CalculateTaxes(config, amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
