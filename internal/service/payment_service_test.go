package service

import (
	"context"
	"testing"

	"github.com/azadjordan/megadie-sub000/internal/model"
	"github.com/azadjordan/megadie-sub000/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) createInvoice(t *testing.T, admin Actor, customer *model.User, amountDue string) InvoiceResponse {
	t.Helper()
	total, err := decimal.NewFromString(amountDue)
	require.NoError(t, err)
	order := e.createOrder(t, customer, total.InexactFloat64())
	inv, err := e.invoices.Create(context.Background(), admin, CreateInvoiceRequest{
		OrderID:   order.ID.String(),
		UserID:    customer.ID.String(),
		AmountDue: amountDue,
	})
	require.NoError(t, err)
	return inv
}

func (e *testEnv) fundWallet(t *testing.T, customer *model.User, amount int64) {
	t.Helper()
	err := e.db.Model(&model.User{}).Where("id = ?", customer.ID).
		Update("wallet_balance", decimal.NewFromInt(amount)).Error
	require.NoError(t, err)
}

func (e *testEnv) walletOf(t *testing.T, customer *model.User) decimal.Decimal {
	t.Helper()
	reloaded, err := e.users.GetByID(context.Background(), customer.ID)
	require.NoError(t, err)
	return reloaded.WalletBalance
}

func TestPaymentService_CreateDerivesInvoiceStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	inv := env.createInvoice(t, admin, customer, "100.00")

	_, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
		UserID:    customer.ID.String(),
		InvoiceID: inv.ID,
		Amount:    "40.00",
		Method:    model.PaymentMethodBankTransfer,
	})
	require.NoError(t, err)

	partial, err := env.invoices.GetByID(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "40.00", partial.AmountPaid)
	assert.Equal(t, model.InvoiceStatusPartiallyPaid, partial.Status)

	// Recording a payment never touches the wallet
	assert.True(t, env.walletOf(t, customer).IsZero())

	_, err = env.payments.Create(ctx, admin, CreatePaymentRequest{
		UserID:    customer.ID.String(),
		InvoiceID: inv.ID,
		Amount:    "60.00",
		Method:    model.PaymentMethodCash,
	})
	require.NoError(t, err)

	paid, err := env.invoices.GetByID(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", paid.AmountPaid)
	assert.Equal(t, model.InvoiceStatusPaid, paid.Status)
	assert.True(t, env.walletOf(t, customer).IsZero())
}

func TestPaymentService_CreateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	inv := env.createInvoice(t, admin, customer, "100.00")

	t.Run("rejects non-positive amount", func(t *testing.T) {
		for _, amount := range []string{"0", "-10"} {
			_, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
				UserID:    customer.ID.String(),
				InvoiceID: inv.ID,
				Amount:    amount,
				Method:    model.PaymentMethodCash,
			})
			require.Error(t, err)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
		}
	})

	t.Run("rejects unknown method", func(t *testing.T) {
		_, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
			UserID:    customer.ID.String(),
			InvoiceID: inv.ID,
			Amount:    "10.00",
			Method:    "Barter",
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("unknown invoice", func(t *testing.T) {
		_, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
			UserID:    customer.ID.String(),
			InvoiceID: "3b2c7d1e-0000-0000-0000-000000000000",
			Amount:    "10.00",
			Method:    model.PaymentMethodCash,
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestPaymentService_CancelAndRestoreNetZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	inv := env.createInvoice(t, admin, customer, "100.00")
	env.fundWallet(t, customer, 500)

	payment, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
		UserID:    customer.ID.String(),
		InvoiceID: inv.ID,
		Amount:    "100.00",
		Method:    model.PaymentMethodCheque,
	})
	require.NoError(t, err)

	// Cancelling pulls the amount back out of the wallet and the invoice
	cancelled, err := env.payments.UpdateStatus(ctx, admin, payment.ID, UpdatePaymentRequest{
		Status: model.PaymentStatusCancelled,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCancelled, cancelled.Status)
	assert.True(t, env.walletOf(t, customer).Equal(decimal.NewFromInt(400)))

	afterCancel, err := env.invoices.GetByID(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", afterCancel.AmountPaid)
	assert.Equal(t, model.InvoiceStatusUnpaid, afterCancel.Status)

	// Reinstating restores both; the round trip nets to zero
	restored, err := env.payments.UpdateStatus(ctx, admin, payment.ID, UpdatePaymentRequest{
		Status: model.PaymentStatusReceived,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusReceived, restored.Status)
	assert.True(t, env.walletOf(t, customer).Equal(decimal.NewFromInt(500)))

	afterRestore, err := env.invoices.GetByID(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", afterRestore.AmountPaid)
	assert.Equal(t, model.InvoiceStatusPaid, afterRestore.Status)
}

func TestPaymentService_CancelInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	inv := env.createInvoice(t, admin, customer, "100.00")

	payment, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
		UserID:    customer.ID.String(),
		InvoiceID: inv.ID,
		Amount:    "100.00",
		Method:    model.PaymentMethodCash,
	})
	require.NoError(t, err)

	// Wallet is empty, so the cancellation would drive it negative
	_, err = env.payments.UpdateStatus(ctx, admin, payment.ID, UpdatePaymentRequest{
		Status: model.PaymentStatusCancelled,
	})
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))

	// Nothing moved: payment, wallet and invoice are all as they were
	assert.True(t, env.walletOf(t, customer).IsZero())

	list, err := env.payments.ListByUser(ctx, customer.ID.String())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.PaymentStatusReceived, list[0].Status)

	untouched, err := env.invoices.GetByID(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", untouched.AmountPaid)
	assert.Equal(t, model.InvoiceStatusPaid, untouched.Status)
}

func TestPaymentService_SameStatusSkipsWallet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	_, admin := env.createAdmin(t)
	inv := env.createInvoice(t, admin, customer, "50.00")
	env.fundWallet(t, customer, 200)

	payment, err := env.payments.Create(ctx, admin, CreatePaymentRequest{
		UserID:    customer.ID.String(),
		InvoiceID: inv.ID,
		Amount:    "50.00",
		Method:    model.PaymentMethodCash,
	})
	require.NoError(t, err)

	note := "confirmed by phone"
	updated, err := env.payments.UpdateStatus(ctx, admin, payment.ID, UpdatePaymentRequest{
		Status: model.PaymentStatusReceived,
		Note:   &note,
	})
	require.NoError(t, err)
	assert.Equal(t, "confirmed by phone", updated.Note)
	assert.True(t, env.walletOf(t, customer).Equal(decimal.NewFromInt(200)))

	unchanged, err := env.invoices.GetByID(ctx, admin, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "50.00", unchanged.AmountPaid)
}

func TestPaymentService_ListByUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")

	list, err := env.payments.ListByUser(ctx, customer.ID.String())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
