package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/repository"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	invoiceNoPrefix = "INV-"
	dueDateDefault  = 30 * 24 * time.Hour
)

// DTOs

type CreateInvoiceRequest struct {
	OrderID   string `json:"order_id" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	AmountDue string `json:"amount_due" binding:"required"`
	DueDate   string `json:"due_date"` // RFC3339, optional
	AdminNote string `json:"admin_note"`
}

// UpdateInvoiceRequest is the allow-listed admin patch
type UpdateInvoiceRequest struct {
	AmountDue *string `json:"amount_due"`
	DueDate   *string `json:"due_date"`
	Status    *string `json:"status"`
	AdminNote *string `json:"admin_note"`
}

type InvoiceResponse struct {
	ID         string `json:"id"`
	InvoiceNo  string `json:"invoice_no"`
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	AmountDue  string `json:"amount_due"`
	AmountPaid string `json:"amount_paid"`
	DueDate    string `json:"due_date"`
	Status     string `json:"status"`
	AdminNote  string `json:"admin_note"`
	CreatedAt  string `json:"created_at"`
}

// InvoiceLineItem is the populated order line exposed to the PDF renderer
type InvoiceLineItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
}

// InvoiceReadModel is the full document an external renderer consumes
type InvoiceReadModel struct {
	InvoiceResponse
	BilledTo       string            `json:"billed_to"`
	BilledEmail    string            `json:"billed_email"`
	Items          []InvoiceLineItem `json:"items"`
	DeliveryCharge float64           `json:"delivery_charge"`
	ExtraFee       float64           `json:"extra_fee"`
	OrderTotal     float64           `json:"order_total"`
}

type InvoiceService interface {
	Create(ctx context.Context, actor Actor, req CreateInvoiceRequest) (InvoiceResponse, error)
	GetByID(ctx context.Context, actor Actor, id string) (InvoiceResponse, error)
	GetReadModel(ctx context.Context, actor Actor, id string) (InvoiceReadModel, error)
	ListAll(ctx context.Context, status string, page, limit int) ([]InvoiceResponse, int64, error)
	ListMine(ctx context.Context, actor Actor) ([]InvoiceResponse, error)
	Update(ctx context.Context, actor Actor, id string, req UpdateInvoiceRequest) (InvoiceResponse, error)
	Delete(ctx context.Context, actor Actor, id string) error
}

type invoiceService struct {
	invoiceRepo repository.InvoiceRepository
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	paymentRepo repository.PaymentRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewInvoiceService(
	invoiceRepo repository.InvoiceRepository,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	paymentRepo repository.PaymentRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) InvoiceService {
	return &invoiceService{
		invoiceRepo: invoiceRepo,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// Create issues an invoice against an order. One invoice per order: the
// unique index on order_id backs the check under concurrent creates. The
// order's invoiceGenerated flag flips inside the same transaction.
func (s *invoiceService) Create(ctx context.Context, actor Actor, req CreateInvoiceRequest) (InvoiceResponse, error) {
	amountDue, err := decimal.NewFromString(req.AmountDue)
	if err != nil {
		return InvoiceResponse{}, apperror.Validation("invalid amount_due: %s", req.AmountDue)
	}
	if !amountDue.IsPositive() {
		return InvoiceResponse{}, apperror.Validation("amount_due must be positive")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return InvoiceResponse{}, apperror.Validation("invalid order_id: %s", req.OrderID)
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return InvoiceResponse{}, apperror.Validation("invalid user_id: %s", req.UserID)
	}

	dueDate := time.Now().Add(dueDateDefault)
	if req.DueDate != "" {
		parsed, parseErr := time.Parse(time.RFC3339, req.DueDate)
		if parseErr != nil {
			return InvoiceResponse{}, apperror.Validation("invalid due_date: %s", req.DueDate)
		}
		dueDate = parsed
	}

	// Two simultaneous creates can race to the same invoice number; the
	// unique index rejects the loser and aborts its transaction, so the
	// retry re-runs the whole transaction with a fresh number rather than
	// retrying the insert inside the aborted one.
	var invoice *model.Invoice
	for attempt := 0; attempt < 2; attempt++ {
		invoice = &model.Invoice{
			OrderID:   orderID,
			UserID:    userID,
			AmountDue: amountDue,
			DueDate:   dueDate,
			Status:    model.InvoiceStatusUnpaid,
			AdminNote: req.AdminNote,
		}

		err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
			order, orderErr := s.orderRepo.FindByID(txCtx, orderID)
			if orderErr != nil {
				if errors.Is(orderErr, gorm.ErrRecordNotFound) {
					return apperror.NotFound("order not found")
				}
				return fmt.Errorf("failed to load order: %w", orderErr)
			}

			if _, userErr := s.userRepo.GetByID(txCtx, userID); userErr != nil {
				if errors.Is(userErr, gorm.ErrRecordNotFound) {
					return apperror.NotFound("user not found")
				}
				return fmt.Errorf("failed to load user: %w", userErr)
			}

			if _, dupErr := s.invoiceRepo.FindByOrderID(txCtx, orderID); dupErr == nil {
				return apperror.Conflict("an invoice already exists for this order")
			} else if !errors.Is(dupErr, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to check existing invoice: %w", dupErr)
			}

			no, numErr := s.nextInvoiceNo(txCtx)
			if numErr != nil {
				return fmt.Errorf("failed to generate invoice number: %w", numErr)
			}
			invoice.InvoiceNo = no

			if createErr := s.invoiceRepo.Create(txCtx, invoice); createErr != nil {
				if errors.Is(createErr, gorm.ErrDuplicatedKey) {
					return createErr
				}
				return fmt.Errorf("failed to create invoice: %w", createErr)
			}

			order.InvoiceGenerated = true
			if saveErr := s.orderRepo.Update(txCtx, order); saveErr != nil {
				return fmt.Errorf("failed to flag order: %w", saveErr)
			}

			return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionCreateInvoice, invoice.ID.String(), invoice.InvoiceNo, req))
		})
		if err == nil {
			return toInvoiceResponse(*invoice), nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return InvoiceResponse{}, err
		}
	}

	return InvoiceResponse{}, apperror.Conflict("invoice number collision, please retry")
}

// nextInvoiceNo reads the numerically highest existing number and increments
// it; numbering starts at INV-00001.
func (s *invoiceService) nextInvoiceNo(ctx context.Context) (string, error) {
	latest, err := s.invoiceRepo.FindLatestByNumber(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Sprintf("%s%05d", invoiceNoPrefix, 1), nil
		}
		return "", err
	}

	suffix := strings.TrimPrefix(latest.InvoiceNo, invoiceNoPrefix)
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return "", fmt.Errorf("malformed invoice number %q: %w", latest.InvoiceNo, err)
	}
	return fmt.Sprintf("%s%05d", invoiceNoPrefix, n+1), nil
}

func (s *invoiceService) GetByID(ctx context.Context, actor Actor, id string) (InvoiceResponse, error) {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return InvoiceResponse{}, err
	}
	if !actor.CanAccess(invoice.UserID) {
		return InvoiceResponse{}, apperror.Forbidden("not allowed to view this invoice")
	}
	return toInvoiceResponse(*invoice), nil
}

// GetReadModel returns the invoice together with the billed user and the
// order's populated line items. The external PDF renderer consumes this.
func (s *invoiceService) GetReadModel(ctx context.Context, actor Actor, id string) (InvoiceReadModel, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return InvoiceReadModel{}, apperror.Validation("invalid invoice id: %s", id)
	}

	invoice, err := s.invoiceRepo.FindByIDWithRelations(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvoiceReadModel{}, apperror.NotFound("invoice not found")
		}
		return InvoiceReadModel{}, fmt.Errorf("database error: %w", err)
	}
	if !actor.CanAccess(invoice.UserID) {
		return InvoiceReadModel{}, apperror.Forbidden("not allowed to view this invoice")
	}

	rm := InvoiceReadModel{InvoiceResponse: toInvoiceResponse(*invoice)}
	if invoice.User != nil {
		rm.BilledTo = invoice.User.Username
		rm.BilledEmail = invoice.User.Email
	}
	if invoice.Order != nil {
		rm.DeliveryCharge = invoice.Order.DeliveryCharge
		rm.ExtraFee = invoice.Order.ExtraFee
		rm.OrderTotal = invoice.Order.TotalPrice
		for _, item := range invoice.Order.Items {
			rm.Items = append(rm.Items, InvoiceLineItem{
				ProductID: item.ProductID.String(),
				Name:      item.Name,
				Price:     item.Price,
				Qty:       item.Qty,
			})
		}
	}
	return rm, nil
}

func (s *invoiceService) ListAll(ctx context.Context, status string, page, limit int) ([]InvoiceResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	invoices, total, err := s.invoiceRepo.List(ctx, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, toInvoiceResponse(inv))
	}
	return result, total, nil
}

func (s *invoiceService) ListMine(ctx context.Context, actor Actor) ([]InvoiceResponse, error) {
	invoices, err := s.invoiceRepo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	result := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, toInvoiceResponse(inv))
	}
	return result, nil
}

// Update applies the allow-listed admin patch. An explicitly set status
// (e.g. Overdue) stands until the next payment event re-derives it.
func (s *invoiceService) Update(ctx context.Context, actor Actor, id string, req UpdateInvoiceRequest) (InvoiceResponse, error) {
	var invoice *model.Invoice
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		invoice, findErr = s.findInvoice(txCtx, id)
		if findErr != nil {
			return findErr
		}

		if req.AmountDue != nil {
			amount, parseErr := decimal.NewFromString(*req.AmountDue)
			if parseErr != nil {
				return apperror.Validation("invalid amount_due: %s", *req.AmountDue)
			}
			if !amount.IsPositive() {
				return apperror.Validation("amount_due must be positive")
			}
			invoice.AmountDue = amount
		}
		if req.DueDate != nil {
			parsed, parseErr := time.Parse(time.RFC3339, *req.DueDate)
			if parseErr != nil {
				return apperror.Validation("invalid due_date: %s", *req.DueDate)
			}
			invoice.DueDate = parsed
		}
		if req.Status != nil {
			switch *req.Status {
			case model.InvoiceStatusUnpaid, model.InvoiceStatusPartiallyPaid,
				model.InvoiceStatusPaid, model.InvoiceStatusOverdue:
				invoice.Status = *req.Status
			default:
				return apperror.Validation("invalid invoice status: %s", *req.Status)
			}
		}
		if req.AdminNote != nil {
			invoice.AdminNote = *req.AdminNote
		}

		if saveErr := s.invoiceRepo.Update(txCtx, invoice); saveErr != nil {
			return fmt.Errorf("failed to save invoice: %w", saveErr)
		}
		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionUpdateInvoice, invoice.ID.String(), invoice.InvoiceNo, req))
	})
	if err != nil {
		return InvoiceResponse{}, err
	}

	return toInvoiceResponse(*invoice), nil
}

// Delete cascades: payments referencing the invoice go first, then the
// invoice itself, in one transaction. No orphaned payment survives.
func (s *invoiceService) Delete(ctx context.Context, actor Actor, id string) error {
	invoice, err := s.findInvoice(ctx, id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.paymentRepo.DeleteByInvoiceID(txCtx, invoice.ID); err != nil {
			return fmt.Errorf("failed to delete payments: %w", err)
		}
		if err := s.invoiceRepo.Delete(txCtx, invoice.ID); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}

		// Keep the order's flag truthful so a fresh invoice can be issued
		if order, orderErr := s.orderRepo.FindByID(txCtx, invoice.OrderID); orderErr == nil {
			order.InvoiceGenerated = false
			if saveErr := s.orderRepo.Update(txCtx, order); saveErr != nil {
				return fmt.Errorf("failed to unflag order: %w", saveErr)
			}
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionDeleteInvoice, invoice.ID.String(), invoice.InvoiceNo, nil))
	})
}

func (s *invoiceService) findInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, apperror.Validation("invalid invoice id: %s", id)
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, invoiceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NotFound("invoice not found")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return invoice, nil
}

func toInvoiceResponse(inv model.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:         inv.ID.String(),
		InvoiceNo:  inv.InvoiceNo,
		OrderID:    inv.OrderID.String(),
		UserID:     inv.UserID.String(),
		AmountDue:  inv.AmountDue.StringFixed(2),
		AmountPaid: inv.AmountPaid.StringFixed(2),
		DueDate:    inv.DueDate.Format(time.RFC3339),
		Status:     inv.Status,
		AdminNote:  inv.AdminNote,
		CreatedAt:  inv.CreatedAt.Format(time.RFC3339),
	}
}
