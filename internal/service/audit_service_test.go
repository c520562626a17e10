package service

import (
	"context"
	"testing"

	"github.com/azadjordan/megadie-sub000/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_AdminMutationsLeaveATrail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "client")
	adminUser, admin := env.createAdmin(t)
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
		Amount:    "25.00",
		Method:    model.PaymentMethodCash,
	})
	require.NoError(t, err)

	_, err = env.orders.ToggleDebt(ctx, admin, order.ID.String())
	require.NoError(t, err)

	logs, total, err := env.audit.GetAuditLogs(ctx, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(len(logs)), total)

	actions := make(map[string]AuditLogResponse, len(logs))
	for _, l := range logs {
		actions[l.Action] = l
	}

	for _, action := range []string{model.ActionCreateInvoice, model.ActionCreatePayment, model.ActionToggleDebt} {
		entry, ok := actions[action]
		require.True(t, ok, "expected an audit row for %s", action)
		assert.Equal(t, adminUser.Username, entry.Username)
		assert.NotEmpty(t, entry.EntityID)
	}

	// The invoice row carries the invoice number as its entity name
	assert.Equal(t, inv.InvoiceNo, actions[model.ActionCreateInvoice].EntityName)
}
