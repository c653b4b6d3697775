package handler

import (
	"log"
	"net/http"

	"sattva/internal/service"
	"sattva/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	bookingService service.BookingService
}

func NewPaymentHandler(bookingService service.BookingService) *PaymentHandler {
	return &PaymentHandler{bookingService: bookingService}
}

// Payment callbacks are unauthenticated: the gateway redirect carries its
// own proof (the HMAC signature), and failure reports are advisory.
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/api/payments")
	{
		payments.POST("/verify", h.Verify)
		payments.POST("/failed", h.ReportFailure)
		payments.GET("/status/:orderID", h.Status)
	}
}

// Verify handles the gateway success callback
// @Summary      Verify a payment
// @Description  Checks the gateway signature for (order, payment) and confirms the booking. Idempotent per pair.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payload  body      service.VerifyPaymentRequest  true  "Redirect Credentials"
// @Success      200      {object}  response.Response{data=service.VerifyPaymentResponse}
// @Failure      400      {object}  response.Response{data=service.VerifyPaymentResponse}
// @Router       /api/payments/verify [post]
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req service.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.bookingService.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	if !result.Success {
		c.JSON(http.StatusBadRequest, response.Success(http.StatusBadRequest, result))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// ReportFailure handles the advisory gateway failure callback
// @Summary      Report a payment failure
// @Description  Best-effort: always acknowledges, even for unknown or already-settled orders.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        payload  body      service.PaymentFailureRequest  true  "Failure Details"
// @Success      200      {object}  response.Response
// @Router       /api/payments/failed [post]
func (h *PaymentHandler) ReportFailure(c *gin.Context) {
	var req service.PaymentFailureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	if err := h.bookingService.ReportFailure(c.Request.Context(), req); err != nil {
		// Advisory telemetry: acknowledge anyway so the client's own failure
		// handling is never blocked on ours.
		log.Printf("failure report for order %s not persisted: %v", req.RazorpayOrderID, err)
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "acknowledged"}))
}

// Status returns the current booking status for an order
// @Summary      Check payment status
// @Description  Poll target for clients whose redirect never arrived.
// @Tags         payments
// @Produce      json
// @Param        orderID  path      string  true  "Razorpay Order ID"
// @Success      200      {object}  response.Response{data=service.BookingStatusResponse}
// @Failure      404      {object}  response.Response
// @Router       /api/payments/status/{orderID} [get]
func (h *PaymentHandler) Status(c *gin.Context) {
	result, err := h.bookingService.Status(c.Request.Context(), c.Param("orderID"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
