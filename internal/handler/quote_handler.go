package handler

import (
	"net/http"

	"github.com/azadjordan/megadie-sub000/internal/middleware"
	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/service"
	"github.com/azadjordan/megadie-sub000/pkg/pagination"
	"github.com/azadjordan/megadie-sub000/pkg/response"

	"github.com/gin-gonic/gin"
)

type QuoteHandler struct {
	quoteService service.QuoteService
}

// NewQuoteHandler sets up the routing dependencies for Quote endpoints
func NewQuoteHandler(quoteService service.QuoteService) *QuoteHandler {
	return &QuoteHandler{quoteService: quoteService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *QuoteHandler) RegisterRoutes(router *gin.RouterGroup) {
	quotes := router.Group("/quotes")
	{
		quotes.POST("", middleware.RequireAuth(), h.CreateQuote)
		quotes.GET("", middleware.RequireAuth(), h.ListMyQuotes)
		quotes.GET("/admin", middleware.RequireAdmin(), h.ListAllQuotes)
		quotes.GET("/:id", middleware.RequireAuth(), h.GetQuoteByID)
		quotes.PUT("/:id", middleware.RequireAdmin(), h.UpdateQuote)
		quotes.PUT("/:id/status", middleware.RequireAuth(), h.SetQuoteStatus)
		quotes.POST("/:id/convert", middleware.RequireAuth(), h.ConvertQuote)
		quotes.DELETE("/:id", middleware.RequireAdmin(), h.DeleteQuote)
	}
}

// CreateQuote handles POST /quotes
// @Summary      Request a quote
// @Description  Submits a price request for one or more products
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateQuoteRequest  true  "Quote payload"
// @Success      201      {object}  response.Response{data=service.QuoteResponse}
// @Failure      400      {object}  response.Response
// @Router       /quotes [post]
func (h *QuoteHandler) CreateQuote(c *gin.Context) {
	var req service.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, quote))
}

// ListMyQuotes handles GET /quotes
// @Summary      List own quotes
// @Description  Pricing fields are withheld while a quote is still Requested
// @Tags         quotes
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]service.QuoteResponse}
// @Router       /quotes [get]
func (h *QuoteHandler) ListMyQuotes(c *gin.Context) {
	quotes, err := h.quoteService.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quotes))
}

// ListAllQuotes handles GET /quotes/admin
// @Summary      List all quotes
// @Tags         quotes
// @Produce      json
// @Security     BearerAuth
// @Param        page   query     int  false  "Page"
// @Param        limit  query     int  false  "Limit"
// @Success      200    {object}  response.Response
// @Router       /quotes/admin [get]
func (h *QuoteHandler) ListAllQuotes(c *gin.Context) {
	params := pagination.Parse(c)
	quotes, total, err := h.quoteService.ListAll(c.Request.Context(), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, "quotes", quotes, total, params.Page, params.Limit))
}

// GetQuoteByID handles GET /quotes/:id
// @Summary      Get quote
// @Description  Owner or admin only
// @Tags         quotes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /quotes/{id} [get]
func (h *QuoteHandler) GetQuoteByID(c *gin.Context) {
	quote, err := h.quoteService.GetByID(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// UpdateQuote handles PUT /quotes/:id
// @Summary      Update quote
// @Description  Applies an admin patch; assigning all unit prices moves a Requested quote to Quoted
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                      true  "Quote ID"
// @Param        payload  body      service.UpdateQuoteRequest  true  "Quote patch"
// @Success      200      {object}  response.Response{data=service.QuoteResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /quotes/{id} [put]
func (h *QuoteHandler) UpdateQuote(c *gin.Context) {
	var req service.UpdateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.Update(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// SetQuoteStatus handles PUT /quotes/:id/status
// @Summary      Set quote status
// @Description  Explicit status transition; Confirmed converts the quote to an order
// @Tags         quotes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                         true  "Quote ID"
// @Param        payload  body      service.SetQuoteStatusRequest  true  "New status"
// @Success      200      {object}  response.Response{data=service.QuoteResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /quotes/{id}/status [put]
func (h *QuoteHandler) SetQuoteStatus(c *gin.Context) {
	var req service.SetQuoteStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	quote, err := h.quoteService.SetStatus(c.Request.Context(), actorFrom(c), c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// ConvertQuote handles POST /quotes/:id/convert
// @Summary      Confirm and convert quote
// @Description  Shorthand for setting the status to Confirmed
// @Tags         quotes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Quote ID"
// @Success      200  {object}  response.Response{data=service.QuoteResponse}
// @Failure      400  {object}  response.Response
// @Router       /quotes/{id}/convert [post]
func (h *QuoteHandler) ConvertQuote(c *gin.Context) {
	quote, err := h.quoteService.SetStatus(c.Request.Context(), actorFrom(c), c.Param("id"), model.QuoteStatusConfirmed)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, quote))
}

// DeleteQuote handles DELETE /quotes/:id
// @Summary      Delete quote
// @Tags         quotes
// @Security     BearerAuth
// @Param        id  path  string  true  "Quote ID"
// @Success      204
// @Failure      404  {object}  response.Response
// @Router       /quotes/{id} [delete]
func (h *QuoteHandler) DeleteQuote(c *gin.Context) {
	if err := h.quoteService.Delete(c.Request.Context(), actorFrom(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
