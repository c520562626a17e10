package handler

import (
	"net/http"

	"github.com/azadjordan/megadie-sub000/internal/middleware"
	"github.com/azadjordan/megadie-sub000/internal/service"
	"github.com/azadjordan/megadie-sub000/pkg/pagination"
	"github.com/azadjordan/megadie-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

// NewPaymentHandler sets up the routing dependencies for Payment endpoints
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup) {
	payments := router.Group("/payments")
	{
		payments.POST("", middleware.RequireAdmin(), h.CreatePayment)
		payments.GET("", middleware.RequireAdmin(), h.ListPayments)
		payments.GET("/user/:userId", middleware.RequireAuth(), h.ListUserPayments)
		payments.PUT("/:id", middleware.RequireAdmin(), h.UpdatePayment)
	}
}

// CreatePayment handles POST /payments
// @Summary      Record payment
// @Description  Records a Received payment against an invoice; the wallet is untouched at creation
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreatePaymentRequest  true  "Payment payload"
// @Success      201      {object}  response.Response{data=service.PaymentResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /payments [post]
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var req service.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payment, err := h.paymentService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// ListPayments handles GET /payments
// @Summary      List all payments
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page"
// @Param        limit  query     int  false  "Limit"
// @Success      200    {object}  response.Response
// @Router       /payments [get]
func (h *PaymentHandler) ListPayments(c *gin.Context) {
	params := pagination.Parse(c)
	payments, total, err := h.paymentService.ListAll(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, "payments", payments, total, params.Page, params.Limit))
}

// ListUserPayments handles GET /payments/user/:userId
// @Summary      List a user's payments
// @Description  Newest first; the caller must be the user or an admin
// @Tags         payments
// @Produce      json
// @Security     BearerAuth
// @Param        userId  path      string  true  "User ID"
// @Success      200     {object}  response.Response{data=[]service.PaymentResponse}
// @Failure      403     {object}  response.Response
// @Router       /payments/user/{userId} [get]
func (h *PaymentHandler) ListUserPayments(c *gin.Context) {
	actor := actorFrom(c)
	userID := c.Param("userId")
	if !actor.IsAdmin && actor.ID.String() != userID {
		c.JSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
		return
	}

	payments, err := h.paymentService.ListByUser(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payments))
}

// UpdatePayment handles PUT /payments/:id
// @Summary      Update payment status
// @Description  The only operation that adjusts the user's wallet balance
// @Tags         payments
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Payment ID"
// @Param        payload  body      service.UpdatePaymentRequest  true  "New status"
// @Success      200      {object}  response.Response{data=service.PaymentResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /payments/{id} [put]
func (h *PaymentHandler) UpdatePayment(c *gin.Context) {
	var req service.UpdatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payment, err := h.paymentService.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, payment))
}
