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

type CreatePaymentRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	InvoiceID   string `json:"invoice_id" binding:"required"`
	Amount      string `json:"amount" binding:"required"`
	Method      string `json:"method" binding:"required"`
	PaymentDate string `json:"payment_date"` // RFC3339, defaults to now
	Note        string `json:"note"`
}

type UpdatePaymentRequest struct {
	Status string  `json:"status" binding:"required,oneof=Received Cancelled"`
	Note   *string `json:"note"`
}

type PaymentResponse struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Username    string `json:"username,omitempty"`
	InvoiceID   string `json:"invoice_id"`
	Amount      string `json:"amount"`
	Method      string `json:"method"`
	PaymentDate string `json:"payment_date"`
	Note        string `json:"note"`
	Status      string `json:"status"`
}

type PaymentService interface {
	Create(ctx context.Context, actor Actor, req CreatePaymentRequest) (PaymentResponse, error)
	UpdateStatus(ctx context.Context, actor Actor, id string, req UpdatePaymentRequest) (PaymentResponse, error)
	ListAll(ctx context.Context, page, limit int) ([]PaymentResponse, int64, error)
	ListByUser(ctx context.Context, userID string) ([]PaymentResponse, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	invoiceRepo repository.InvoiceRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	hub         *ws.Hub
}

func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	invoiceRepo repository.InvoiceRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	hub *ws.Hub,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		invoiceRepo: invoiceRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		hub:         hub,
	}
}

// Create records a Received payment against an invoice. The invoice's
// amountPaid rises and its status re-derives. The user's wallet is NOT
// touched here; wallet adjustments happen only on status transitions.
func (s *paymentService) Create(ctx context.Context, actor Actor, req CreatePaymentRequest) (PaymentResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return PaymentResponse{}, apperror.Validation("invalid amount: %s", req.Amount)
	}
	if !amount.IsPositive() {
		return PaymentResponse{}, apperror.Validation("amount must be greater than zero")
	}
	if !model.ValidPaymentMethod(req.Method) {
		return PaymentResponse{}, apperror.Validation("invalid payment method: %s", req.Method)
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return PaymentResponse{}, apperror.Validation("invalid user_id: %s", req.UserID)
	}
	invoiceID, err := uuid.Parse(req.InvoiceID)
	if err != nil {
		return PaymentResponse{}, apperror.Validation("invalid invoice_id: %s", req.InvoiceID)
	}

	paymentDate := time.Now()
	if req.PaymentDate != "" {
		parsed, parseErr := time.Parse(time.RFC3339, req.PaymentDate)
		if parseErr != nil {
			return PaymentResponse{}, apperror.Validation("invalid payment_date: %s", req.PaymentDate)
		}
		paymentDate = parsed
	}

	var payment *model.Payment
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, userErr := s.userRepo.GetByID(txCtx, userID); userErr != nil {
			if errors.Is(userErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("user not found")
			}
			return fmt.Errorf("failed to load user: %w", userErr)
		}

		invoice, invErr := s.invoiceRepo.FindByID(txCtx, invoiceID)
		if invErr != nil {
			if errors.Is(invErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("invoice not found")
			}
			return fmt.Errorf("failed to load invoice: %w", invErr)
		}

		payment = &model.Payment{
			UserID:      userID,
			InvoiceID:   invoiceID,
			Amount:      amount,
			Method:      req.Method,
			PaymentDate: paymentDate,
			Note:        req.Note,
			Status:      model.PaymentStatusReceived,
		}
		if createErr := s.paymentRepo.Create(txCtx, payment); createErr != nil {
			return fmt.Errorf("failed to create payment: %w", createErr)
		}

		invoice.AmountPaid = invoice.AmountPaid.Add(amount)
		invoice.DeriveStatus()
		if saveErr := s.invoiceRepo.Update(txCtx, invoice); saveErr != nil {
			return fmt.Errorf("failed to update invoice: %w", saveErr)
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionCreatePayment, payment.ID.String(), "", req))
	})
	if err != nil {
		return PaymentResponse{}, err
	}

	broadcast(s.hub, "payment.updated", map[string]interface{}{
		"payment_id": payment.ID.String(),
		"status":     payment.Status,
	})

	return toPaymentResponse(*payment), nil
}

// UpdateStatus is the only path that mutates the user's wallet.
// Received -> Cancelled subtracts the amount from the wallet (and the
// invoice's amountPaid); Cancelled -> Received adds it back. A transition
// that would drive the wallet negative is rejected whole: the hypothetical
// balance is checked before either document is saved.
func (s *paymentService) UpdateStatus(ctx context.Context, actor Actor, id string, req UpdatePaymentRequest) (PaymentResponse, error) {
	paymentID, err := uuid.Parse(id)
	if err != nil {
		return PaymentResponse{}, apperror.Validation("invalid payment id: %s", id)
	}

	var payment *model.Payment
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var findErr error
		payment, findErr = s.paymentRepo.FindByID(txCtx, paymentID)
		if findErr != nil {
			if errors.Is(findErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("payment not found")
			}
			return fmt.Errorf("failed to load payment: %w", findErr)
		}

		prev := payment.Status
		next := req.Status
		if req.Note != nil {
			payment.Note = *req.Note
		}

		// Only the two real transitions carry a wallet delta
		var delta decimal.Decimal
		switch {
		case prev == model.PaymentStatusReceived && next == model.PaymentStatusCancelled:
			delta = payment.Amount.Neg()
		case prev == model.PaymentStatusCancelled && next == model.PaymentStatusReceived:
			delta = payment.Amount
		default:
			payment.Status = next
			if saveErr := s.paymentRepo.Update(txCtx, payment); saveErr != nil {
				return fmt.Errorf("failed to save payment: %w", saveErr)
			}
			return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionUpdatePayment, payment.ID.String(), "", req))
		}

		user, userErr := s.userRepo.GetByIDForUpdate(txCtx, payment.UserID)
		if userErr != nil {
			if errors.Is(userErr, gorm.ErrRecordNotFound) {
				return apperror.NotFound("payment owner no longer exists")
			}
			return fmt.Errorf("failed to load user: %w", userErr)
		}

		newBalance := user.WalletBalance.Add(delta)
		if newBalance.IsNegative() {
			return apperror.Validation("insufficient funds: wallet balance would become negative")
		}
		user.WalletBalance = newBalance

		invoice, invErr := s.invoiceRepo.FindByID(txCtx, payment.InvoiceID)
		if invErr == nil {
			invoice.AmountPaid = invoice.AmountPaid.Add(delta)
			invoice.DeriveStatus()
			if saveErr := s.invoiceRepo.Update(txCtx, invoice); saveErr != nil {
				return fmt.Errorf("failed to update invoice: %w", saveErr)
			}
		} else if !errors.Is(invErr, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load invoice: %w", invErr)
		}

		payment.Status = next
		if saveErr := s.userRepo.Update(txCtx, user); saveErr != nil {
			return fmt.Errorf("failed to save user balance: %w", saveErr)
		}
		if saveErr := s.paymentRepo.Update(txCtx, payment); saveErr != nil {
			return fmt.Errorf("failed to save payment: %w", saveErr)
		}

		return s.auditRepo.Log(txCtx, auditEntry(actor.ID, model.ActionUpdatePayment, payment.ID.String(), "", map[string]string{
			"from": prev,
			"to":   next,
		}))
	})
	if err != nil {
		return PaymentResponse{}, err
	}

	broadcast(s.hub, "payment.updated", map[string]interface{}{
		"payment_id": payment.ID.String(),
		"status":     payment.Status,
	})

	return toPaymentResponse(*payment), nil
}

func (s *paymentService) ListAll(ctx context.Context, page, limit int) ([]PaymentResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	payments, total, err := s.paymentRepo.List(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	result := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, toPaymentResponse(p))
	}
	return result, total, nil
}

// ListByUser returns the user's payments newest first; no payments is an
// empty list, not an error.
func (s *paymentService) ListByUser(ctx context.Context, userID string) ([]PaymentResponse, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, apperror.Validation("invalid user id: %s", userID)
	}

	payments, err := s.paymentRepo.ListByUser(ctx, uid)
	if err != nil {
		return nil, err
	}

	result := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		result = append(result, toPaymentResponse(p))
	}
	return result, nil
}

func toPaymentResponse(p model.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:          p.ID.String(),
		UserID:      p.UserID.String(),
		InvoiceID:   p.InvoiceID.String(),
		Amount:      p.Amount.StringFixed(2),
		Method:      p.Method,
		PaymentDate: p.PaymentDate.Format(time.RFC3339),
		Note:        p.Note,
		Status:      p.Status,
	}
	if p.User != nil {
		resp.Username = p.User.Username
	}
	return resp
}
