package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/repository"
	ws "github.com/azadjordan/megadie-sub000/internal/websocket"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DTOs
type OrderItemRequest struct {
	ProductID string            `json:"product_id" binding:"required"`
	Qty       int               `json:"qty" binding:"required,gt=0"`
	Price     float64           `json:"price" binding:"gte=0"`
	Specs     map[string]string `json:"specs"`
}

type ShippingAddressRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Country string `json:"country"`
	Phone   string `json:"phone"`
}

type CreateOrderRequest struct {
	Items      []OrderItemRequest     `json:"items"`
	TotalPrice float64                `json:"total_price" binding:"gte=0"`
	Shipping   ShippingAddressRequest `json:"shipping"`
}

type RepriceItemRequest struct {
	ProductID string  `json:"product_id" binding:"required"`
	NewPrice  float64 `json:"new_price" binding:"gte=0"`
}

type RepriceOrderRequest struct {
	Items          []RepriceItemRequest `json:"items" binding:"required,min=1,dive"`
	DeliveryCharge float64              `json:"delivery_charge" binding:"gte=0"`
	ExtraFee       float64              `json:"extra_fee" binding:"gte=0"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateNoteRequest distinguishes "omitted" (leave the previous value) from
// an explicit empty string (clear the note).
type UpdateNoteRequest struct {
	Note *string `json:"note"`
}

type OrderService interface {
	Create(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Order, error)
	GetByID(ctx context.Context, actor Actor, id string) (*model.Order, error)
	ListMine(ctx context.Context, actor Actor) ([]model.Order, error)
	ListAll(ctx context.Context, page, limit int) ([]model.Order, int64, error)
	Reprice(ctx context.Context, actor Actor, id string, req RepriceOrderRequest) (*model.Order, error)
	SetStatus(ctx context.Context, actor Actor, id string, status string) (*model.Order, error)
	TogglePaid(ctx context.Context, actor Actor, id string) (*model.Order, error)
	ToggleDebt(ctx context.Context, actor Actor, id string) (*model.Order, error)
	DeductStock(ctx context.Context, actor Actor, id string) (*model.Order, error)
	RestoreStock(ctx context.Context, actor Actor, id string) (*model.Order, error)
	SetSellerNote(ctx context.Context, actor Actor, id string, req UpdateNoteRequest) (*model.Order, error)
	SetAdminNote(ctx context.Context, actor Actor, id string, req UpdateNoteRequest) (*model.Order, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	stockRepo   repository.StockMovementRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *ws.Hub
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	stockRepo repository.StockMovementRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		userRepo:    userRepo,
		stockRepo:   stockRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

// Create persists a new Pending order. The caller-supplied subtotal is
// trusted; prices are not recomputed from the catalog at creation time.
func (s *orderService) Create(ctx context.Context, actor Actor, req CreateOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperror.Validation("order must contain at least one item")
	}

	order := &model.Order{
		UserID:     actor.ID,
		TotalPrice: req.TotalPrice,
		Status:     model.OrderStatusPending,
		Shipping: model.ShippingAddress{
			Address: req.Shipping.Address,
			City:    req.Shipping.City,
			Country: req.Shipping.Country,
			Phone:   req.Shipping.Phone,
		},
	}

	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.orderRepo.Create(txCtx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, itemReq := range req.Items {
			pid, parseErr := uuid.Parse(itemReq.ProductID)
			if parseErr != nil {
				return apperror.Validation("invalid product_id: %s", itemReq.ProductID)
			}
			product, findErr := s.productRepo.FindByID(txCtx, pid)
			if findErr != nil {
				if errors.Is(findErr, gorm.ErrRecordNotFound) {
					return apperror.Validation("product not found: %s", itemReq.ProductID)
				}
				return fmt.Errorf("failed to find product %s: %w", itemReq.ProductID, findErr)
			}

			item := &model.OrderItem{
				OrderID:   order.ID,
				ProductID: product.ID,
				Name:      product.Name,
				Image:     product.Image,
				Price:     itemReq.Price,
				Qty:       itemReq.Qty,
				Specs:     itemReq.Specs,
			}
			if err := s.orderRepo.CreateItem(txCtx, item); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, *item)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	broadcast(s.hub, "order.created", map[string]interface{}{
		"order_id": order.ID.String(),
		"user_id":  order.UserID.String(),
		"total":    order.TotalPrice,
	})

	return order, nil
}

func (s *orderService) GetByID(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(order.UserID) {
		return nil, apperror.Forbidden("not allowed to view this order")
	}
	return order, nil
}

func (s *orderService) ListMine(ctx context.Context, actor Actor) ([]model.Order, error) {
	return s.orderRepo.ListByUser(ctx, actor.ID)
}

func (s *orderService) ListAll(ctx context.Context, page, limit int) ([]model.Order, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return s.orderRepo.List(ctx, page, limit)
}

// Reprice overwrites the unit prices of the referenced line items, recomputes
// totalPrice = sum(price*qty) + deliveryCharge + extraFee, marks the order
// quoted and advances Pending -> Quoted. Items not referenced keep their
// previous price.
func (s *orderService) Reprice(ctx context.Context, actor Actor, id string, req RepriceOrderRequest) (*model.Order, error) {
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		order, findErr = s.findOrder(txCtx, id)
		if findErr != nil {
			return findErr
		}

		newPrices := make(map[uuid.UUID]float64, len(req.Items))
		for _, it := range req.Items {
			pid, parseErr := uuid.Parse(it.ProductID)
			if parseErr != nil {
				return apperror.Validation("invalid product_id: %s", it.ProductID)
			}
			newPrices[pid] = it.NewPrice
		}

		total := 0.0
		for i := range order.Items {
			if price, ok := newPrices[order.Items[i].ProductID]; ok {
				order.Items[i].Price = price
				if err := s.orderRepo.UpdateItem(txCtx, &order.Items[i]); err != nil {
					return fmt.Errorf("failed to update order item: %w", err)
				}
			}
			total += order.Items[i].Price * float64(order.Items[i].Qty)
		}

		order.DeliveryCharge = req.DeliveryCharge
		order.ExtraFee = req.ExtraFee
		order.TotalPrice = total + req.DeliveryCharge + req.ExtraFee
		order.IsQuoted = true
		if order.Status == model.OrderStatusPending {
			order.Status = model.OrderStatusQuoted
		}

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionRepriceOrder, order.ID.String(), "", req))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetStatus assigns an order status. "Delivered" stamps the delivery flag and
// timestamp; any other value clears both.
func (s *orderService) SetStatus(ctx context.Context, actor Actor, id string, status string) (*model.Order, error) {
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		order, findErr = s.findOrder(txCtx, id)
		if findErr != nil {
			return findErr
		}

		order.Status = status
		if status == model.OrderStatusDelivered {
			now := time.Now()
			order.IsDelivered = true
			order.DeliveredAt = &now
		} else {
			order.IsDelivered = false
			order.DeliveredAt = nil
		}

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionSetOrderStatus, order.ID.String(), "", map[string]string{"status": status}))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// TogglePaid flips the manual paid override. It does not touch the wallet or
// any invoice; that is the payment ledger's job.
func (s *orderService) TogglePaid(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		order, findErr = s.findOrder(txCtx, id)
		if findErr != nil {
			return findErr
		}

		order.IsPaid = !order.IsPaid
		if order.IsPaid {
			now := time.Now()
			order.PaidAt = &now
		} else {
			order.PaidAt = nil
		}

		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionTogglePaid, order.ID.String(), "", map[string]bool{"is_paid": order.IsPaid}))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ToggleDebt attaches or detaches the order's total from the owning user's
// outstanding balance. Attach then detach restores the prior balance exactly;
// both documents are saved in one transaction.
func (s *orderService) ToggleDebt(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		order, findErr = s.findOrder(txCtx, id)
		if findErr != nil {
			return findErr
		}

		user, userErr := s.userRepo.GetByIDForUpdate(txCtx, order.UserID)
		if userErr != nil {
			if errors.Is(userErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("order owner no longer exists")
			}
			return fmt.Errorf("failed to load user: %w", userErr)
		}

		amount := decimal.NewFromFloat(order.TotalPrice)
		if order.IsAttachedToDebt {
			user.OutstandingBalance = user.OutstandingBalance.Sub(amount)
		} else {
			user.OutstandingBalance = user.OutstandingBalance.Add(amount)
		}
		order.IsAttachedToDebt = !order.IsAttachedToDebt

		if err := s.userRepo.Update(txCtx, user); err != nil {
			return fmt.Errorf("failed to save user balance: %w", err)
		}
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionToggleDebt, order.ID.String(), "", map[string]interface{}{
			"attached": order.IsAttachedToDebt,
			"amount":   order.TotalPrice,
		}))
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// DeductStock decrements each line item's product stock by its quantity.
// The whole operation fails if any product is missing, stock is insufficient,
// or the order's stock was already deducted; no partial decrement survives.
func (s *orderService) DeductStock(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		order, findErr = s.findOrder(txCtx, id)
		if findErr != nil {
			return findErr
		}

		if order.StockUpdated {
			return apperror.Validation("stock has already been deducted for this order")
		}

		for _, item := range order.Items {
			product, prodErr := s.productRepo.FindByIDForUpdate(txCtx, item.ProductID)
			if prodErr != nil {
				if errors.Is(prodErr, gorm.ErrRecordNotFound) {
					return apperror.Validation("product %q no longer exists", item.Name)
				}
				return fmt.Errorf("failed to load product %s: %w", item.ProductID, prodErr)
			}
			if product.Stock < item.Qty {
				return apperror.Validation("insufficient stock for %q: have %d, need %d", product.Name, product.Stock, item.Qty)
			}

			newStock := product.Stock - item.Qty
			if err := s.productRepo.UpdateStock(txCtx, product.ID, newStock); err != nil {
				return fmt.Errorf("failed to update stock for %s: %w", product.ID, err)
			}
			movement := &model.StockMovement{
				ProductID:  product.ID,
				OrderID:    order.ID,
				Direction:  model.StockDirectionOut,
				Quantity:   item.Qty,
				StockAfter: newStock,
			}
			if err := s.stockRepo.Create(txCtx, movement); err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}

		order.StockUpdated = true
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionDeductStock, order.ID.String(), "", map[string]int{"items": len(order.Items)}))
	})
	if err != nil {
		return nil, err
	}

	broadcast(s.hub, "stock.deducted", map[string]interface{}{"order_id": order.ID.String()})
	return order, nil
}

// RestoreStock is the inverse of DeductStock; it rejects when stock was never
// deducted for the order.
func (s *orderService) RestoreStock(ctx context.Context, actor Actor, id string) (*model.Order, error) {
	var order *model.Order
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		order, findErr = s.findOrder(txCtx, id)
		if findErr != nil {
			return findErr
		}

		if !order.StockUpdated {
			return apperror.Validation("stock was never deducted for this order")
		}

		for _, item := range order.Items {
			product, prodErr := s.productRepo.FindByIDForUpdate(txCtx, item.ProductID)
			if prodErr != nil {
				if errors.Is(prodErr, gorm.ErrRecordNotFound) {
					return apperror.Validation("product %q no longer exists", item.Name)
				}
				return fmt.Errorf("failed to load product %s: %w", item.ProductID, prodErr)
			}

			newStock := product.Stock + item.Qty
			if err := s.productRepo.UpdateStock(txCtx, product.ID, newStock); err != nil {
				return fmt.Errorf("failed to update stock for %s: %w", product.ID, err)
			}
			movement := &model.StockMovement{
				ProductID:  product.ID,
				OrderID:    order.ID,
				Direction:  model.StockDirectionIn,
				Quantity:   item.Qty,
				StockAfter: newStock,
			}
			if err := s.stockRepo.Create(txCtx, movement); err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}

		order.StockUpdated = false
		if err := s.orderRepo.Update(txCtx, order); err != nil {
			return fmt.Errorf("failed to save order: %w", err)
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionRestoreStock, order.ID.String(), "", map[string]int{"items": len(order.Items)}))
	})
	if err != nil {
		return nil, err
	}

	broadcast(s.hub, "stock.restored", map[string]interface{}{"order_id": order.ID.String()})
	return order, nil
}

func (s *orderService) SetSellerNote(ctx context.Context, actor Actor, id string, req UpdateNoteRequest) (*model.Order, error) {
	return s.setNote(ctx, actor, id, req, false)
}

func (s *orderService) SetAdminNote(ctx context.Context, actor Actor, id string, req UpdateNoteRequest) (*model.Order, error) {
	return s.setNote(ctx, actor, id, req, true)
}

func (s *orderService) setNote(ctx context.Context, actor Actor, id string, req UpdateNoteRequest, admin bool) (*model.Order, error) {
	order, err := s.findOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	// nil means the field was omitted: keep the previous value
	if req.Note == nil {
		return order, nil
	}

	if admin {
		order.AdminNote = *req.Note
	} else {
		order.SellerNote = *req.Note
	}

	if err := s.orderRepo.Update(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

func (s *orderService) findOrder(ctx context.Context, id string) (*model.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid order id: %s", id)
	}
	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("order not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return order, nil
}
