package handler

import (
	"net/http"

	"sattva/internal/middleware"
	"sattva/internal/service"
	"sattva/pkg/pagination"
	"sattva/pkg/response"

	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	bookingService service.BookingService
}

func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

func (h *BookingHandler) RegisterRoutes(router *gin.RouterGroup) {
	bookings := router.Group("/api/bookings")
	{
		// Review is public: users price a booking before logging in
		bookings.GET("/review", h.Review)

		authed := bookings.Group("")
		authed.Use(middleware.RequireAuth())
		{
			authed.POST("", h.Create)
			authed.GET("", h.ListMine)
			authed.POST("/:id/cancel", h.Cancel)
		}
	}
}

// Review prices a prospective booking
// @Summary      Review a booking
// @Description  Computes base amount, discounts and applicable taxes for a prospective booking. Persists nothing.
// @Tags         bookings
// @Produce      json
// @Param        booking_type  query     string  true   "pilgrim_experience or wellness_class"
// @Param        entity_id     query     string  true   "Entity ID"
// @Param        attendees     query     int     true   "Attendee count"
// @Param        sessions      query     int     false  "Session count (classes)"
// @Success      200  {object}  response.Response{data=service.ReviewResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/bookings/review [get]
func (h *BookingHandler) Review(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid review parameters: "+err.Error()))
		return
	}

	review, err := h.bookingService.Review(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, review))
}

// Create creates a booking and its payment order
// @Summary      Create a booking
// @Description  Recomputes pricing server-side, persists the booking and registers a gateway order.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateBookingRequest  true  "Booking Payload"
// @Success      201      {object}  response.Response{data=service.CreateBookingResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req service.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.bookingService.Create(c.Request.Context(), req, middleware.UserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ListMine returns the caller's bookings
// @Summary      List my bookings
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/bookings [get]
func (h *BookingHandler) ListMine(c *gin.Context) {
	params := pagination.Parse(c)

	bookings, total, err := h.bookingService.ListByUser(c.Request.Context(), middleware.UserID(c), params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"bookings": bookings,
		"total":    total,
		"page":     params.Page,
		"limit":    params.Limit,
	}))
}

// Cancel cancels an unpaid booking owned by the caller
// @Summary      Cancel a booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	if err := h.bookingService.Cancel(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "booking cancelled"}))
}
