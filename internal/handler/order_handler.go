package handler

import (
	"net/http"

	"github.com/azadjordan/megadie-sub000/internal/middleware"
	"github.com/azadjordan/megadie-sub000/internal/service"
	"github.com/azadjordan/megadie-sub000/pkg/pagination"
	"github.com/azadjordan/megadie-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService service.OrderService
}

// NewOrderHandler sets up the routing dependencies for Order endpoints
func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/orders")
	{
		orders.POST("", middleware.RequireAuth(), h.CreateOrder)
		orders.GET("/myorders", middleware.RequireAuth(), h.ListMyOrders)
		orders.GET("/:id", middleware.RequireAuth(), h.GetOrderByID)
		orders.GET("", middleware.RequireAdmin(), h.ListOrders)

		orders.PUT("/:id/update-prices", middleware.RequireAdmin(), h.RepriceOrder)
		orders.PUT("/:id/status", middleware.RequireAdmin(), h.SetOrderStatus)
		orders.PUT("/:id/toggle-pay", middleware.RequireAdmin(), h.TogglePaid)
		orders.PUT("/:id/toggle-debt", middleware.RequireAdmin(), h.ToggleDebt)
		orders.PUT("/:id/seller-note", middleware.RequireAdmin(), h.SetSellerNote)
		orders.PUT("/:id/admin-note", middleware.RequireAdmin(), h.SetAdminNote)
		orders.POST("/:id/deduct-stock", middleware.RequireAdmin(), h.DeductStock)
		orders.POST("/:id/restore-stock", middleware.RequireAdmin(), h.RestoreStock)
	}
}

// CreateOrder handles POST /orders
// @Summary      Create order
// @Description  Places a new order from the supplied line items
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateOrderRequest  true  "Order payload"
// @Success      201      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Router       /orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ListMyOrders handles GET /orders/myorders
// @Summary      List own orders
// @Description  Returns the caller's orders newest first
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Order}
// @Router       /orders/myorders [get]
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	orders, err := h.orderService.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, orders))
}

// GetOrderByID handles GET /orders/:id
// @Summary      Get order
// @Description  Fetches one order; owner or admin only
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /orders/{id} [get]
func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	order, err := h.orderService.GetByID(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// ListOrders handles GET /orders
// @Summary      List all orders
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page"
// @Param        limit  query     int  false  "Limit"
// @Success      200    {object}  response.Response
// @Router       /orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	params := pagination.Parse(c)
	orders, total, err := h.orderService.ListAll(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, "orders", orders, total, params.Page, params.Limit))
}

// RepriceOrder handles PUT /orders/:id/update-prices
// @Summary      Reprice order
// @Description  Overwrites matching line-item prices, recomputes the total and advances Pending to Quoted
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Order ID"
// @Param        payload  body      service.RepriceOrderRequest  true  "New prices"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /orders/{id}/update-prices [put]
func (h *OrderHandler) RepriceOrder(c *gin.Context) {
	var req service.RepriceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.orderService.Reprice(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// SetOrderStatus handles PUT /orders/:id/status
// @Summary      Set order status
// @Description  Assigns a status; Delivered stamps the delivery flag and timestamp
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                    true  "Order ID"
// @Param        payload  body      service.SetStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=model.Order}
// @Failure      400      {object}  response.Response
// @Router       /orders/{id}/status [put]
func (h *OrderHandler) SetOrderStatus(c *gin.Context) {
	var req service.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.orderService.SetStatus(c.Request.Context(), actorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// TogglePaid handles PUT /orders/:id/toggle-pay
// @Summary      Toggle paid flag
// @Description  Manual paid override; independent of invoices and payments
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Router       /orders/{id}/toggle-pay [put]
func (h *OrderHandler) TogglePaid(c *gin.Context) {
	order, err := h.orderService.TogglePaid(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// ToggleDebt handles PUT /orders/:id/toggle-debt
// @Summary      Toggle debt attachment
// @Description  Attaches or detaches the order total from the owner's outstanding balance
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      404  {object}  response.Response
// @Router       /orders/{id}/toggle-debt [put]
func (h *OrderHandler) ToggleDebt(c *gin.Context) {
	order, err := h.orderService.ToggleDebt(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// DeductStock handles POST /orders/:id/deduct-stock
// @Summary      Deduct stock
// @Description  Decrements every line item's product stock; all or nothing
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      400  {object}  response.Response
// @Router       /orders/{id}/deduct-stock [post]
func (h *OrderHandler) DeductStock(c *gin.Context) {
	order, err := h.orderService.DeductStock(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// RestoreStock handles POST /orders/:id/restore-stock
// @Summary      Restore stock
// @Description  Returns previously deducted stock to each product
// @Tags         orders
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Order ID"
// @Success      200  {object}  response.Response{data=model.Order}
// @Failure      400  {object}  response.Response
// @Router       /orders/{id}/restore-stock [post]
func (h *OrderHandler) RestoreStock(c *gin.Context) {
	order, err := h.orderService.RestoreStock(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// SetSellerNote handles PUT /orders/:id/seller-note
// @Summary      Set seller note
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Order ID"
// @Param        payload  body      service.UpdateNoteRequest  true  "Note"
// @Success      200      {object}  response.Response{data=model.Order}
// @Router       /orders/{id}/seller-note [put]
func (h *OrderHandler) SetSellerNote(c *gin.Context) {
	var req service.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.orderService.SetSellerNote(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// SetAdminNote handles PUT /orders/:id/admin-note
// @Summary      Set admin note
// @Tags         orders
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                     true  "Order ID"
// @Param        payload  body      service.UpdateNoteRequest  true  "Note"
// @Success      200      {object}  response.Response{data=model.Order}
// @Router       /orders/{id}/admin-note [put]
func (h *OrderHandler) SetAdminNote(c *gin.Context) {
	var req service.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	order, err := h.orderService.SetAdminNote(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}
