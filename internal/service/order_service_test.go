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

func TestOrderService_Create(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	product := env.createProduct(t, "Satin Ribbon", 12.5, 100)

	t.Run("rejects empty items", func(t *testing.T) {
		_, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})

	t.Run("snapshots product name and trusts supplied total", func(t *testing.T) {
		order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
			Items: []OrderItemRequest{
				{ProductID: product.ID.String(), Qty: 4, Price: 12.5},
			},
			TotalPrice: 50,
		})
		require.NoError(t, err)

		assert.Equal(t, model.OrderStatusPending, order.Status)
		assert.InDelta(t, 50.0, order.TotalPrice, 1e-6)
		require.Len(t, order.Items, 1)
		assert.Equal(t, "Satin Ribbon", order.Items[0].Name)
		assert.Equal(t, customer.ID, order.UserID)
	})

	t.Run("rejects unknown product", func(t *testing.T) {
		_, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
			Items: []OrderItemRequest{
				{ProductID: "00000000-0000-0000-0000-000000000001", Qty: 1},
			},
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestOrderService_Reprice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	p1 := env.createProduct(t, "Ribbon A", 10, 50)
	p2 := env.createProduct(t, "Ribbon B", 15, 50)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items: []OrderItemRequest{
			{ProductID: p1.ID.String(), Qty: 3, Price: 10},
			{ProductID: p2.ID.String(), Qty: 2, Price: 15},
		},
		TotalPrice: 60,
	})
	require.NoError(t, err)

	t.Run("recomputes total and advances to Quoted", func(t *testing.T) {
		repriced, err := env.orders.Reprice(ctx, admin, order.ID.String(), RepriceOrderRequest{
			Items: []RepriceItemRequest{
				{ProductID: p1.ID.String(), NewPrice: 8},
			},
			DeliveryCharge: 5,
			ExtraFee:       2,
		})
		require.NoError(t, err)

		// untouched item keeps its old price: 3*8 + 2*15 + 5 + 2
		assert.InDelta(t, 61.0, repriced.TotalPrice, 1e-6)
		assert.True(t, repriced.IsQuoted)
		assert.Equal(t, model.OrderStatusQuoted, repriced.Status)
	})

	t.Run("status beyond Pending is not downgraded", func(t *testing.T) {
		_, err := env.orders.SetStatus(ctx, admin, order.ID.String(), model.OrderStatusProcessing)
		require.NoError(t, err)

		repriced, err := env.orders.Reprice(ctx, admin, order.ID.String(), RepriceOrderRequest{
			Items:          []RepriceItemRequest{{ProductID: p1.ID.String(), NewPrice: 9}},
			DeliveryCharge: 0,
			ExtraFee:       0,
		})
		require.NoError(t, err)
		assert.Equal(t, model.OrderStatusProcessing, repriced.Status)
	})

	t.Run("missing order yields not found", func(t *testing.T) {
		_, err := env.orders.Reprice(ctx, admin, "00000000-0000-0000-0000-0000000000aa", RepriceOrderRequest{
			Items: []RepriceItemRequest{{ProductID: p1.ID.String(), NewPrice: 1}},
		})
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
	})
}

func TestOrderService_SetStatusDeliveredStamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	product := env.createProduct(t, "Tape", 5, 10)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 1, Price: 5}},
		TotalPrice: 5,
	})
	require.NoError(t, err)

	delivered, err := env.orders.SetStatus(ctx, admin, order.ID.String(), model.OrderStatusDelivered)
	require.NoError(t, err)
	assert.True(t, delivered.IsDelivered)
	require.NotNil(t, delivered.DeliveredAt)

	reverted, err := env.orders.SetStatus(ctx, admin, order.ID.String(), model.OrderStatusShipped)
	require.NoError(t, err)
	assert.False(t, reverted.IsDelivered)
	assert.Nil(t, reverted.DeliveredAt)
}

func TestOrderService_ToggleDebtSymmetry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	product := env.createProduct(t, "Matrix", 30, 10)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 2, Price: 30}},
		TotalPrice: 60,
	})
	require.NoError(t, err)

	before := customer.OutstandingBalance

	attached, err := env.orders.ToggleDebt(ctx, admin, order.ID.String())
	require.NoError(t, err)
	assert.True(t, attached.IsAttachedToDebt)

	afterAttach, err := env.users.GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, afterAttach.OutstandingBalance.Equal(before.Add(decimal.NewFromFloat(60))),
		"expected %s got %s", before.Add(decimal.NewFromFloat(60)), afterAttach.OutstandingBalance)

	detached, err := env.orders.ToggleDebt(ctx, admin, order.ID.String())
	require.NoError(t, err)
	assert.False(t, detached.IsAttachedToDebt)

	afterDetach, err := env.users.GetByID(ctx, customer.ID)
	require.NoError(t, err)
	assert.True(t, afterDetach.OutstandingBalance.Equal(before),
		"attach-then-detach must restore the prior balance exactly")
}

func TestOrderService_StockDeductionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	product := env.createProduct(t, "Creasing Matrix", 20, 10)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 4, Price: 20}},
		TotalPrice: 80,
	})
	require.NoError(t, err)

	t.Run("deduct decrements stock once", func(t *testing.T) {
		deducted, err := env.orders.DeductStock(ctx, admin, order.ID.String())
		require.NoError(t, err)
		assert.True(t, deducted.StockUpdated)

		p, err := env.products.FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, p.Stock)
	})

	t.Run("double deduction is rejected", func(t *testing.T) {
		_, err := env.orders.DeductStock(ctx, admin, order.ID.String())
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))

		p, err := env.products.FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 6, p.Stock, "failed deduction must not touch stock")
	})

	t.Run("restore returns stock to the pre-deduction value", func(t *testing.T) {
		restored, err := env.orders.RestoreStock(ctx, admin, order.ID.String())
		require.NoError(t, err)
		assert.False(t, restored.StockUpdated)

		p, err := env.products.FindByID(ctx, product.ID)
		require.NoError(t, err)
		assert.Equal(t, 10, p.Stock)
	})

	t.Run("restore without deduction is rejected", func(t *testing.T) {
		_, err := env.orders.RestoreStock(ctx, admin, order.ID.String())
		require.Error(t, err)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	})
}

func TestOrderService_DeductStockInsufficient(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	plenty := env.createProduct(t, "Plenty", 10, 100)
	scarce := env.createProduct(t, "Scarce", 10, 1)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items: []OrderItemRequest{
			{ProductID: plenty.ID.String(), Qty: 5, Price: 10},
			{ProductID: scarce.ID.String(), Qty: 3, Price: 10},
		},
		TotalPrice: 80,
	})
	require.NoError(t, err)

	_, err = env.orders.DeductStock(ctx, admin, order.ID.String())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
	assert.Contains(t, err.Error(), "Scarce")

	// The transaction rolled back: the first product's stock is intact
	p, err := env.products.FindByID(ctx, plenty.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Stock)
}

func TestOrderService_TogglePaid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	product := env.createProduct(t, "Tape", 5, 10)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 1, Price: 5}},
		TotalPrice: 5,
	})
	require.NoError(t, err)

	paid, err := env.orders.TogglePaid(ctx, admin, order.ID.String())
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.NotNil(t, paid.PaidAt)

	unpaid, err := env.orders.TogglePaid(ctx, admin, order.ID.String())
	require.NoError(t, err)
	assert.False(t, unpaid.IsPaid)
	assert.Nil(t, unpaid.PaidAt)
}

func TestOrderService_Notes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	customer := env.createUser(t, "buyer")
	_, admin := env.createAdmin(t)
	product := env.createProduct(t, "Tape", 5, 10)

	order, err := env.orders.Create(ctx, actorFor(customer), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 1, Price: 5}},
		TotalPrice: 5,
	})
	require.NoError(t, err)

	note := "ships friday"
	updated, err := env.orders.SetSellerNote(ctx, admin, order.ID.String(), UpdateNoteRequest{Note: &note})
	require.NoError(t, err)
	assert.Equal(t, "ships friday", updated.SellerNote)

	// Omitted note leaves the previous value
	kept, err := env.orders.SetSellerNote(ctx, admin, order.ID.String(), UpdateNoteRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ships friday", kept.SellerNote)

	// Explicit empty string clears it
	empty := ""
	cleared, err := env.orders.SetSellerNote(ctx, admin, order.ID.String(), UpdateNoteRequest{Note: &empty})
	require.NoError(t, err)
	assert.Equal(t, "", cleared.SellerNote)
}

func TestOrderService_OwnerAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner")
	stranger := env.createUser(t, "stranger")
	product := env.createProduct(t, "Tape", 5, 10)

	order, err := env.orders.Create(ctx, actorFor(owner), CreateOrderRequest{
		Items:      []OrderItemRequest{{ProductID: product.ID.String(), Qty: 1, Price: 5}},
		TotalPrice: 5,
	})
	require.NoError(t, err)

	_, err = env.orders.GetByID(ctx, actorFor(stranger), order.ID.String())
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindForbidden))

	got, err := env.orders.GetByID(ctx, actorFor(owner), order.ID.String())
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
}
