package service

import (
	"context"
	"testing"
	"time"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/internal/repository"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createOrder(t *testing.T, customer *model.User, total float64) *model.Order {
	t.Helper()
	product := e.createProduct(t, "Invoiced Ribbon", total, 100)
	order, err := e.orders.Create(context.Background(), actorFor(customer), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 1, Price: total}},
		TotalPrice: total,
	})
	require.NoError(t, err)
	return order
}

func TestInvoiceService_NumberSequence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)

	first, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   env.createOrder(t, customer, 100).ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-00001", first.InvoiceNo)

	second, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   env.createOrder(t, customer, 50).ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "50.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-00002", second.InvoiceNo)
	assert.Greater(t, second.InvoiceNo, first.InvoiceNo)
}

func TestInvoiceService_NumberSequenceBeyondPadding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)

	// Seed the counter past the zero padding. INV-100000 sorts below
	// INV-99999 as a string, so this pins the numeric ordering.
	for _, no := range []string{"INV-99999", "INV-100000"} {
		seeded := &model.Invoice{
			OrderID:   env.createOrder(t, customer, 10).ID,
			UserID:    customer.ID,
			InvoiceNo: no,
			AmountDue: decimal.NewFromInt(10),
			DueDate:   time.Now(),
			Status:    model.InvoiceStatusUnpaid,
		}
		require.NoError(t, env.db.Create(seeded).Error)
	}

	next, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   env.createOrder(t, customer, 10).ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "10.00",
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-100001", next.InvoiceNo)
}

// collidingInvoiceRepo slips a rival invoice with the same number in just
// before the real insert, standing in for a concurrent create winning the
// number race.
type collidingInvoiceRepo struct {
	repository.InvoiceRepository
	rivalOrder uuid.UUID
	rivalUser  uuid.UUID
	remaining  int
	collisions int
}

func (r *collidingInvoiceRepo) Create(ctx context.Context, invoice *model.Invoice) error {
	if r.remaining > 0 {
		r.remaining--
		r.collisions++
		rival := &model.Invoice{
			OrderID:   r.rivalOrder,
			UserID:    r.rivalUser,
			InvoiceNo: invoice.InvoiceNo,
			AmountDue: decimal.NewFromInt(1),
			DueDate:   time.Now(),
			Status:    model.InvoiceStatusUnpaid,
		}
		if err := r.InvoiceRepository.Create(ctx, rival); err != nil {
			return err
		}
	}
	return r.InvoiceRepository.Create(ctx, invoice)
}

func (e *testEnv) invoiceServiceWith(repo repository.InvoiceRepository) InvoiceService {
	return NewInvoiceService(
		repo,
		repository.NewOrderRepository(e.db),
		repository.NewUserRepository(e.db),
		repository.NewPaymentRepository(e.db),
		repository.NewAuditRepository(e.db),
		repository.NewTransactionManager(e.db),
	)
}

func TestInvoiceService_NumberCollisionRetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)

	t.Run("loser retries with a fresh transaction", func(t *testing.T) {
		racing := &collidingInvoiceRepo{
			InvoiceRepository: repository.NewInvoiceRepository(env.db),
			rivalOrder:        env.createOrder(t, customer, 10).ID,
			rivalUser:         customer.ID,
			remaining:         1,
		}
		invoices := env.invoiceServiceWith(racing)

		order := env.createOrder(t, customer, 100)
		created, err := invoices.Create(ctx, admin, CreateInvoiceRequest{
			OrderID:   order.ID.String(),
			UserID:    customer.ID.String(),
			AmountDue: "100.00",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, racing.collisions)
		assert.Equal(t, "INV-00001", created.InvoiceNo)

		// The collided attempt rolled back whole; only the winner persists
		var count int64
		require.NoError(t, env.db.Model(&model.Invoice{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
	})

	t.Run("second collision gives up with a conflict", func(t *testing.T) {
		racing := &collidingInvoiceRepo{
			InvoiceRepository: repository.NewInvoiceRepository(env.db),
			rivalOrder:        env.createOrder(t, customer, 10).ID,
			rivalUser:         customer.ID,
			remaining:         2,
		}
		invoices := env.invoiceServiceWith(racing)

		order := env.createOrder(t, customer, 100)
		_, err := invoices.Create(ctx, admin, CreateInvoiceRequest{
			OrderID:   order.ID.String(),
			UserID:    customer.ID.String(),
			AmountDue: "100.00",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindConflict))
		assert.Equal(t, 2, racing.collisions)

		// Neither aborted attempt left an invoice on the order
		reloaded, err := env.orders.GetByID(ctx, admin, order.ID.String())
		require.NoError(t, err)
		assert.False(t, reloaded.InvoiceGenerated)
	})
}

func TestInvoiceService_OnePerOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	order := env.createOrder(t, customer, 100)

	first, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   order.ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.NoError(t, err)

	_, err = env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   order.ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	// The existing invoice is untouched by the rejected attempt
	kept, err := env.invoices.GetByID(ctx, admin, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.InvoiceNo, kept.InvoiceNo)
	assert.Equal(t, "100.00", kept.AmountDue)
}

func TestInvoiceService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)

	t.Run("due date defaults to thirty days out", func(t *testing.T) {
		inv, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
			OrderID:   env.createOrder(t, customer, 80).ID.String(),
			UserID:    customer.ID.String(),
			AmountDue: "80.00",
		})
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusUnpaid, inv.Status)
		assert.Equal(t, "0.00", inv.AmountPaid)

		due, err := time.Parse(time.RFC3339, inv.DueDate)
		require.NoError(t, err)
		expected := time.Now().Add(30 * 24 * time.Hour)
		assert.WithinDuration(t, expected, due, time.Minute)
	})

	t.Run("flags the order as invoiced", func(t *testing.T) {
		order := env.createOrder(t, customer, 60)
		_, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
			OrderID:   order.ID.String(),
			UserID:    customer.ID.String(),
			AmountDue: "60.00",
		})
		require.NoError(t, err)

		reloaded, err := env.orders.GetByID(ctx, admin, order.ID.String())
		require.NoError(t, err)
		assert.True(t, reloaded.InvoiceGenerated)
	})

	t.Run("rejects bad amounts", func(t *testing.T) {
		order := env.createOrder(t, customer, 10)
		for _, amount := range []string{"0", "-5", "abc"} {
			_, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
				OrderID:   order.ID.String(),
				UserID:    customer.ID.String(),
				AmountDue: amount,
			})
			require.Error(t, err, "amount %q must be rejected", amount)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
			OrderID:   "8e4f6f6a-0000-0000-0000-000000000000",
			UserID:    customer.ID.String(),
			AmountDue: "10.00",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestInvoiceService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)

	inv, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   env.createOrder(t, customer, 100).ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.NoError(t, err)

	t.Run("admin can mark overdue", func(t *testing.T) {
		status := model.InvoiceStatusOverdue
		updated, err := env.invoices.Update(ctx, admin, inv.ID, UpdateInvoiceRequest{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, model.InvoiceStatusOverdue, updated.Status)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		status := "Settled"
		_, err := env.invoices.Update(ctx, admin, inv.ID, UpdateInvoiceRequest{Status: &status})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("rejects non-positive amount_due", func(t *testing.T) {
		amount := "0"
		_, err := env.invoices.Update(ctx, admin, inv.ID, UpdateInvoiceRequest{AmountDue: &amount})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestInvoiceService_OwnerAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	stranger := env.createUser(t, "stranger")
	_, admin := env.createAdmin(t)

	inv, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   env.createOrder(t, customer, 100).ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.NoError(t, err)

	_, err = env.invoices.GetByID(ctx, actorFor(customer), inv.ID)
	require.NoError(t, err)

	_, err = env.invoices.GetByID(ctx, actorFor(stranger), inv.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	mine, err := env.invoices.ListMine(ctx, actorFor(customer))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, inv.InvoiceNo, mine[0].InvoiceNo)
}

func TestInvoiceService_ReadModel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	order := env.createOrder(t, customer, 120)

	inv, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   order.ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "120.00",
	})
	require.NoError(t, err)

	rm, err := env.invoices.GetReadModel(ctx, actorFor(customer), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, customer.Username, rm.BilledTo)
	assert.Equal(t, customer.Email, rm.BilledEmail)
	assert.InDelta(t, 120.0, rm.OrderTotal, 1e-6)
	require.Len(t, rm.Items, 1)
	assert.Equal(t, "Invoiced Ribbon", rm.Items[0].Name)
	assert.InDelta(t, 120.0, rm.Items[0].Price, 1e-6)
}

func TestInvoiceService_DeleteCascades(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	order := env.createOrder(t, customer, 100)

	inv, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   order.ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.NoError(t, err)

	_, err = env.payments.Create(ctx, admin, CreatePaymentRequest{
		UserID:    customer.ID.String(),
		InvoiceID: inv.ID,
		Amount:    "40.00",
		Method:    model.PaymentMethodCash,
	})
	require.NoError(t, err)

	require.NoError(t, env.invoices.Delete(ctx, admin, inv.ID))

	_, err = env.invoices.GetByID(ctx, admin, inv.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	// Payments against the invoice are gone with it
	payments, err := env.payments.ListByUser(ctx, customer.ID.String())
	require.NoError(t, err)
	assert.Empty(t, payments)

	// And the order can be invoiced again
	reloaded, err := env.orders.GetByID(ctx, admin, order.ID.String())
	require.NoError(t, err)
	assert.False(t, reloaded.InvoiceGenerated)

	again, err := env.invoices.Create(ctx, admin, CreateInvoiceRequest{
		OrderID:   order.ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: "100.00",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, again.InvoiceNo)
}
