package handler

import (
	"net/http"

	"sattva/internal/repository"
	"sattva/pkg/pagination"
	"sattva/pkg/response"

	"github.com/gin-gonic/gin"
)

// CatalogHandler serves the public listing endpoints feeding the booking
// review flow.
type CatalogHandler struct {
	entities repository.EntityRepository
}

func NewCatalogHandler(entities repository.EntityRepository) *CatalogHandler {
	return &CatalogHandler{entities: entities}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	catalog := router.Group("/api/catalog")
	{
		catalog.GET("/experiences", h.ListExperiences)
		catalog.GET("/classes", h.ListClasses)
	}
}

// ListExperiences returns active pilgrim experiences
// @Summary      List pilgrim experiences
// @Tags         catalog
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/catalog/experiences [get]
func (h *CatalogHandler) ListExperiences(c *gin.Context) {
	params := pagination.Parse(c)

	items, total, err := h.entities.ListExperiences(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"experiences": items,
		"total":       total,
		"page":        params.Page,
		"limit":       params.Limit,
	}))
}

// ListClasses returns active wellness classes
// @Summary      List wellness classes
// @Tags         catalog
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/catalog/classes [get]
func (h *CatalogHandler) ListClasses(c *gin.Context) {
	params := pagination.Parse(c)

	items, total, err := h.entities.ListClasses(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"classes": items,
		"total":   total,
		"page":    params.Page,
		"limit":   params.Limit,
	}))
}
