package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/repository"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DTOs
type QuoteItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Qty       int    `json:"qty" binding:"required,gt=0"`
}

type CreateQuoteRequest struct {
	Items      []QuoteItemRequest `json:"items"`
	ClientNote string             `json:"client_note"`
}

type QuoteItemPatch struct {
	ProductID string  `json:"product_id" binding:"required"`
	UnitPrice float64 `json:"unit_price" binding:"gte=0"`
}

// UpdateQuoteRequest is the allow-listed admin patch. Assigning unit prices
// recomputes the total and advances Requested -> Quoted; nothing here ever
// forces a status change on an already-decided quote.
type UpdateQuoteRequest struct {
	Items          []QuoteItemPatch `json:"items"`
	DeliveryCharge *float64         `json:"delivery_charge"`
	ExtraFee       *float64         `json:"extra_fee"`
	AdminNote      *string          `json:"admin_note"`
	ClientNote     *string          `json:"client_note"`
}

type SetQuoteStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Requested Quoted Confirmed Rejected"`
}

// QuoteItemView hides the unit price while the quote is still Requested
type QuoteItemView struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Qty       int      `json:"qty"`
	UnitPrice *float64 `json:"unit_price,omitempty"`
}

// QuoteResponse is the read model. Pricing fields are pointers so the
// sanitized owner view can omit them entirely.
type QuoteResponse struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Items          []QuoteItemView `json:"items"`
	DeliveryCharge *float64        `json:"delivery_charge,omitempty"`
	ExtraFee       *float64        `json:"extra_fee,omitempty"`
	TotalPrice     *float64        `json:"total_price,omitempty"`
	Status         string          `json:"status"`
	AdminNote      string          `json:"admin_note"`
	ClientNote     string          `json:"client_note"`
	IsOrderCreated bool            `json:"is_order_created"`
	OrderID        *string         `json:"order_id,omitempty"`
	CreatedAt      string          `json:"created_at"`
}

type QuoteService interface {
	Create(ctx context.Context, actor Actor, req CreateQuoteRequest) (QuoteResponse, error)
	GetByID(ctx context.Context, actor Actor, id string) (QuoteResponse, error)
	ListMine(ctx context.Context, actor Actor) ([]QuoteResponse, error)
	ListAll(ctx context.Context, page, limit int) ([]QuoteResponse, int64, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateQuoteRequest) (QuoteResponse, error)
	SetStatus(ctx context.Context, actor Actor, id string, status string) (QuoteResponse, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type quoteService struct {
	quoteRepo   repository.QuoteRepository
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewQuoteService(
	quoteRepo repository.QuoteRepository,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) QuoteService {
	return &quoteService{
		quoteRepo:   quoteRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// Create persists a Requested quote with zero pricing
func (s *quoteService) Create(ctx context.Context, actor Actor, req CreateQuoteRequest) (QuoteResponse, error) {
	if len(req.Items) == 0 {
		return QuoteResponse{}, apperror.Validation("quote must contain at least one item")
	}

	quote := &model.Quote{
		UserID:     actor.ID,
		Status:     model.QuoteStatusRequested,
		ClientNote: req.ClientNote,
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, itemReq := range req.Items {
			pid, parseErr := uuid.Parse(itemReq.ProductID)
			if parseErr != nil {
				return apperror.Validation("invalid product_id: %s", itemReq.ProductID)
			}
			if _, findErr := s.productRepo.FindByID(txCtx, pid); findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return apperror.Validation("product not found: %s", itemReq.ProductID)
				}
				return fmt.Errorf("failed to find product %s: %w", itemReq.ProductID, findErr)
			}
			quote.Items = append(quote.Items, model.QuoteItem{
				ProductID: pid,
				Qty:       itemReq.Qty,
			})
		}
		return s.quoteRepo.Create(txCtx, quote)
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	return toQuoteResponse(*quote, s.sanitizeFor(actor, quote)), nil
}

func (s *quoteService) GetByID(ctx context.Context, actor Actor, id string) (QuoteResponse, error) {
	quote, err := s.findQuote(ctx, id)
	if err != nil {
		return QuoteResponse{}, err
	}
	if !actor.CanAccess(quote.UserID) {
		return QuoteResponse{}, apperror.Forbidden("not allowed to view this quote")
	}
	return toQuoteResponse(*quote, s.sanitizeFor(actor, quote)), nil
}

func (s *quoteService) ListMine(ctx context.Context, actor Actor) ([]QuoteResponse, error) {
	quotes, err := s.quoteRepo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	res := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		res = append(res, toQuoteResponse(q, s.sanitizeFor(actor, &q)))
	}
	return res, nil
}

func (s *quoteService) ListAll(ctx context.Context, page, limit int) ([]QuoteResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	quotes, total, err := s.quoteRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]QuoteResponse, 0, len(quotes))
	for _, q := range quotes {
		res = append(res, toQuoteResponse(q, false))
	}
	return res, total, nil
}

// Update applies the admin patch. Setting every item's unit price while the
// quote is Requested advances it to Quoted; the status is otherwise
// untouched (transitions go through SetStatus).
func (s *quoteService) Update(ctx context.Context, actor Actor, id string, req UpdateQuoteRequest) (QuoteResponse, error) {
	var quote *model.Quote
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		quote, findErr = s.findQuote(txCtx, id)
		if findErr != nil {
			return findErr
		}

		if len(req.Items) > 0 {
			newPrices := make(map[uuid.UUID]float64, len(req.Items))
			for _, it := range req.Items {
				pid, parseErr := uuid.Parse(it.ProductID)
				if parseErr != nil {
					return apperror.Validation("invalid product_id: %s", it.ProductID)
				}
				newPrices[pid] = it.UnitPrice
			}
			for i := range quote.Items {
				if price, ok := newPrices[quote.Items[i].ProductID]; ok {
					quote.Items[i].UnitPrice = price
					if err := s.quoteRepo.UpdateItem(txCtx, &quote.Items[i]); err != nil {
						return fmt.Errorf("failed to update quote item: %w", err)
					}
				}
			}
		}

		if req.DeliveryCharge != nil {
			quote.DeliveryCharge = *req.DeliveryCharge
		}
		if req.ExtraFee != nil {
			quote.ExtraFee = *req.ExtraFee
		}
		if req.AdminNote != nil {
			quote.AdminNote = *req.AdminNote
		}
		if req.ClientNote != nil {
			quote.ClientNote = *req.ClientNote
		}

		total := 0.0
		for _, item := range quote.Items {
			total += item.UnitPrice * float64(item.Qty)
		}
		quote.TotalPrice = total + quote.DeliveryCharge + quote.ExtraFee

		if quote.Status == model.QuoteStatusRequested && len(req.Items) > 0 {
			quote.Status = model.QuoteStatusQuoted
		}

		if err := s.quoteRepo.Update(txCtx, quote); err != nil {
			return fmt.Errorf("failed to save quote: %w", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionUpdateQuote, quote.ID.String(), "", req))
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	return toQuoteResponse(*quote, false), nil
}

// SetStatus performs an explicit state transition. Confirming converts the
// quote into an order: line items are snapshotted at their quoted prices and
// the quote keeps a back-reference to the created order.
func (s *quoteService) SetStatus(ctx context.Context, actor Actor, id string, status string) (QuoteResponse, error) {
	var quote *model.Quote
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		quote, findErr = s.findQuote(txCtx, id)
		if findErr != nil {
			return findErr
		}

		if !actor.CanAccess(quote.UserID) {
			return apperror.Forbidden("not allowed to modify this quote")
		}

		// Terminal states stay terminal unless an admin overrides
		if (quote.Status == model.QuoteStatusConfirmed || quote.Status == model.QuoteStatusRejected) && !actor.IsAdmin {
			return apperror.Validation("quote is already %s", quote.Status)
		}
		// Owners may only decide a quote that has been priced
		if !actor.IsAdmin && quote.Status == model.QuoteStatusRequested {
			return apperror.Validation("quote has not been priced yet")
		}
		// And deciding means confirming or rejecting, nothing else
		if !actor.IsAdmin && status != model.QuoteStatusConfirmed && status != model.QuoteStatusRejected {
			return apperror.Validation("a quote can only be confirmed or rejected")
		}

		quote.Status = status

		if status == model.QuoteStatusConfirmed && !quote.IsOrderCreated {
			order, convErr := s.convertToOrder(txCtx, quote)
			if convErr != nil {
				return convErr
			}
			quote.IsOrderCreated = true
			quote.OrderID = &order.ID
		}

		if err := s.quoteRepo.Update(txCtx, quote); err != nil {
			return fmt.Errorf("failed to save quote: %w", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionSetQuoteStatus, quote.ID.String(), "", map[string]string{"status": status}))
	})
	if err != nil {
		return QuoteResponse{}, err
	}

	return toQuoteResponse(*quote, s.sanitizeFor(actor, quote)), nil
}

func (s *quoteService) Delete(ctx context.Context, actor Actor, id string) error {
	quote, err := s.findQuote(ctx, id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.quoteRepo.Delete(txCtx, quote.ID); err != nil {
			return fmt.Errorf("failed to delete quote: %w", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionDeleteQuote, quote.ID.String(), "", nil))
	})
}

// convertToOrder materializes a confirmed quote as an order. The order is
// born already priced: status Quoted, isQuoted set, totals copied over.
func (s *quoteService) convertToOrder(txCtx context.Context, quote *model.Quote) (*model.Order, error) {
	order := &model.Order{
		UserID:         quote.UserID,
		DeliveryCharge: quote.DeliveryCharge,
		ExtraFee:       quote.ExtraFee,
		TotalPrice:     quote.TotalPrice,
		Status:         model.OrderStatusQuoted,
		IsQuoted:       true,
		QuoteID:        &quote.ID,
	}
	if err := s.orderRepo.Create(txCtx, order); err != nil {
		return nil, fmt.Errorf("failed to create order from quote: %w", err)
	}

	for _, qi := range quote.Items {
		product, err := s.productRepo.FindByID(txCtx, qi.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.Validation("product no longer exists: %s", qi.ProductID)
			}
			return nil, fmt.Errorf("failed to load product %s: %w", qi.ProductID, err)
		}
		item := &model.OrderItem{
			OrderID:   order.ID,
			ProductID: product.ID,
			Name:      product.Name,
			Image:     product.Image,
			Price:     qi.UnitPrice,
			Qty:       qi.Qty,
		}
		if err := s.orderRepo.CreateItem(txCtx, item); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return order, nil
}

// sanitizeFor reports whether pricing must be hidden from this actor's view
func (s *quoteService) sanitizeFor(actor Actor, quote *model.Quote) bool {
	return !actor.IsAdmin && quote.Status == model.QuoteStatusRequested
}

func (s *quoteService) findQuote(ctx context.Context, id string) (*model.Quote, error) {
	quoteID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid quote id: %s", id)
	}
	quote, err := s.quoteRepo.FindByID(ctx, quoteID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("quote not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return quote, nil
}

// toQuoteResponse maps a quote to its read model. With sanitize set the
// pricing fields (unit prices, delivery charge, extra fee, total) are
// omitted; the values stay stored either way.
func toQuoteResponse(q model.Quote, sanitize bool) QuoteResponse {
	resp := QuoteResponse{
		ID:             q.ID.String(),
		UserID:         q.UserID.String(),
		Status:         q.Status,
		AdminNote:      q.AdminNote,
		ClientNote:     q.ClientNote,
		IsOrderCreated: q.IsOrderCreated,
		CreatedAt:      q.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	for _, item := range q.Items {
		view := QuoteItemView{
			ID:        item.ID.String(),
			ProductID: item.ProductID.String(),
			Qty:       item.Qty,
		}
		if !sanitize {
			price := item.UnitPrice
			view.UnitPrice = &price
		}
		resp.Items = append(resp.Items, view)
	}

	if !sanitize {
		delivery, extra, total := q.DeliveryCharge, q.ExtraFee, q.TotalPrice
		resp.DeliveryCharge = &delivery
		resp.ExtraFee = &extra
		resp.TotalPrice = &total
	}
	if q.OrderID != nil {
		id := q.OrderID.String()
		resp.OrderID = &id
	}

	return resp
}
