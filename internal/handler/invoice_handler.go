package handler

import (
	"net/http"

	"github.com/azadjordan/megadie-sub000/internal/middleware"
	"github.com/azadjordan/megadie-sub000/internal/service"
	"github.com/azadjordan/megadie-sub000/pkg/pagination"
	"github.com/azadjordan/megadie-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
}

// NewInvoiceHandler sets up the routing dependencies for Invoice endpoints
func NewInvoiceHandler(invoiceService service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("", middleware.RequireAdmin(), h.CreateInvoice)
		invoices.GET("", middleware.RequireAdmin(), h.ListInvoices)
		invoices.GET("/my", middleware.RequireAuth(), h.ListMyInvoices)
		invoices.GET("/:id", middleware.RequireAuth(), h.GetInvoiceByID)
		invoices.GET("/:id/pdf", middleware.RequireAuth(), h.GetInvoiceReadModel)
		invoices.PUT("/:id", middleware.RequireAdmin(), h.UpdateInvoice)
		invoices.DELETE("/:id", middleware.RequireAdmin(), h.DeleteInvoice)
	}
}

// CreateInvoice handles POST /invoices
// @Summary      Create invoice
// @Description  Issues the invoice for an order; one invoice per order
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateInvoiceRequest  true  "Invoice payload"
// @Success      201      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices handles GET /invoices
// @Summary      List all invoices
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        status  query     string  false  "Filter by status"
// @Param        page    query     int     false  "Page"
// @Param        limit   query     int     false  "Limit"
// @Success      200     {object}  response.Response
// @Router       /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	params := pagination.Parse(c)
	invoices, total, err := h.invoiceService.ListAll(c.Request.Context(), c.Query("status"), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, "invoices", invoices, total, params.Page, params.Limit))
}

// ListMyInvoices handles GET /invoices/my
// @Summary      List own invoices
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.InvoiceResponse}
// @Router       /invoices/my [get]
func (h *InvoiceHandler) ListMyInvoices(c *gin.Context) {
	invoices, err := h.invoiceService.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoices))
}

// GetInvoiceByID handles GET /invoices/:id
// @Summary      Get invoice
// @Description  Owner or admin only
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	invoice, err := h.invoiceService.GetByID(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// GetInvoiceReadModel handles GET /invoices/:id/pdf
// @Summary      Invoice read model
// @Description  Returns the invoice with populated order line items for an external PDF renderer
// @Tags         invoices
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.InvoiceReadModel}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /invoices/{id}/pdf [get]
func (h *InvoiceHandler) GetInvoiceReadModel(c *gin.Context) {
	readModel, err := h.invoiceService.GetReadModel(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, readModel))
}

// UpdateInvoice handles PUT /invoices/:id
// @Summary      Update invoice
// @Description  Applies an allow-listed patch; status re-derives from paid amounts
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                        true  "Invoice ID"
// @Param        payload  body      service.UpdateInvoiceRequest  true  "Invoice patch"
// @Success      200      {object}  response.Response{data=service.InvoiceResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /invoices/{id} [put]
func (h *InvoiceHandler) UpdateInvoice(c *gin.Context) {
	var req service.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.Update(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// DeleteInvoice handles DELETE /invoices/:id
// @Summary      Delete invoice
// @Description  Deletes the invoice and all payments referencing it
// @Tags         invoices
// @Security     BearerAuth
// @Param        id  path  string  true  "Invoice ID"
// @Success      204
// @Failure      404  {object}  response.Response
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	if err := h.invoiceService.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
