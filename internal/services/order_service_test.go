package services

import (
	"context"
	"testing"

	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createCashOrder(t *testing.T, f *fixture, items []models.OrderItemInput) *models.Order {
	t.Helper()
	result, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug:     "night-market",
		PhoneTail:     "123",
		PaymentMethod: models.PaymentCash,
		Items:         items,
	})
	require.NoError(t, err)
	return result.Order
}

func TestCreateOrderCash(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	f.seedProduct(2, "甘梅地瓜", 40, 5)

	order := createCashOrder(t, f, []models.OrderItemInput{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Qty: 1}, // legacy alias
		{ProductID: 2, Quantity: 1},
	})

	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, 1, order.DailySerial)
	assert.Equal(t, int64(220), order.Total)
	assert.Len(t, order.Items, 2) // duplicate product lines merged

	assert.Equal(t, 3, f.db.products[1].Stock)
	assert.Equal(t, 3, f.db.products[2].Stock)
	assert.Len(t, f.movementsFor("order_create"), 2)
	assert.Zero(t, f.gw.requestCalls)
}

func TestCreateOrderDailySerialIncrements(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 10)

	first := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	second := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	assert.Equal(t, 1, first.DailySerial)
	assert.Equal(t, 2, second.DailySerial)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 2)

	_, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug: "night-market",
		PhoneTail: "123",
		Items:     []models.OrderItemInput{{ProductID: 1, Quantity: 3}},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "雞排", stockErr.ProductName)
	assert.Equal(t, 2, stockErr.Remaining)

	assert.Equal(t, 2, f.db.products[1].Stock)
	assert.Empty(t, f.db.orders)
	assert.Empty(t, f.db.movements)
}

func TestCreateOrderReservationIsAllOrNothing(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	f.seedProduct(2, "甘梅地瓜", 40, 1)

	_, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug: "night-market",
		PhoneTail: "123",
		Items: []models.OrderItemInput{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 2},
		},
	})
	require.Error(t, err)

	// the first line's decrement rolled back with the transaction
	assert.Equal(t, 5, f.db.products[1].Stock)
	assert.Equal(t, 1, f.db.products[2].Stock)
	assert.Empty(t, f.db.orders)
}

func TestCreateOrderInactiveProduct(t *testing.T) {
	f := newFixture()
	f.seedStore()
	p := f.seedProduct(1, "下架雞排", 70, 5)
	p.IsActive = false

	_, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug: "night-market",
		PhoneTail: "123",
		Items:     []models.OrderItemInput{{ProductID: 1, Quantity: 1}},
	})

	var inactiveErr *InactiveProductError
	require.ErrorAs(t, err, &inactiveErr)
	assert.Equal(t, 5, f.db.products[1].Stock)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture()
	store := f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	items := []models.OrderItemInput{{ProductID: 1, Quantity: 1}}
	svc := f.orderService()
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderRequest{StoreSlug: "nope", PhoneTail: "123", Items: items})
	assert.ErrorIs(t, err, ErrStoreNotFound)

	_, err = svc.CreateOrder(ctx, CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123", PaymentMethod: "bitcoin", Items: items,
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123",
		Items: []models.OrderItemInput{{ProductID: 1, Quantity: 0}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	store.PaymentEnabled = false
	f.db.addStore(*store)
	_, err = svc.CreateOrder(ctx, CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123",
		PaymentMethod: models.PaymentGateway, Items: items,
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrderInactiveStore(t *testing.T) {
	f := newFixture()
	store := f.seedStore()
	store.IsActive = false
	f.db.addStore(*store)
	f.seedProduct(1, "雞排", 70, 5)

	_, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123",
		Items: []models.OrderItemInput{{ProductID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestCreateOrderGatewaySuccess(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)

	result, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug:     "night-market",
		PhoneTail:     "123",
		PaymentMethod: models.PaymentGateway,
		Items:         []models.OrderItemInput{{ProductID: 1, Quantity: 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.com/tx-test", result.PaymentURL)
	assert.Equal(t, 1, f.gw.requestCalls)

	stored := f.db.orders[result.Order.ID]
	assert.Equal(t, StatusPending, stored.Status)
	require.NotNil(t, stored.GatewayTransactionID)
	assert.Equal(t, "tx-test", *stored.GatewayTransactionID)
	assert.Equal(t, 3, f.db.products[1].Stock)
}

func TestCreateOrderGatewayFailureCancelsAndReleases(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	f.gw.requestErr = &gateway.Error{Code: "1104", Message: "merchant not active"}

	_, err := f.orderService().CreateOrder(context.Background(), CreateOrderRequest{
		StoreSlug:     "night-market",
		PhoneTail:     "123",
		PaymentMethod: models.PaymentGateway,
		Items:         []models.OrderItemInput{{ProductID: 1, Quantity: 2}},
	})

	var gwErr *gateway.Error
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "1104", gwErr.Code)

	require.Len(t, f.db.orders, 1)
	for _, stored := range f.db.orders {
		assert.Equal(t, StatusCancelled, stored.Status)
	}
	assert.Equal(t, 5, f.db.products[1].Stock)
	assert.Len(t, f.movementsFor("payment_request_failed"), 1)
}

func TestUpdateStatusForward(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	svc := f.orderService()
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, order.ID, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, updated.Status)

	// completing stamps completed_at exactly once
	updated, err = svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	stamped := *updated.CompletedAt

	updated, err = svc.UpdateStatus(ctx, order.ID, StatusFinal)
	require.NoError(t, err)
	require.NotNil(t, updated.CompletedAt)
	assert.Equal(t, stamped, *updated.CompletedAt)
}

func TestUpdateStatusRejectsIllegalMoves(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	svc := f.orderService()
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, order.ID, "paid")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.UpdateStatus(ctx, order.ID, StatusArchived)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = svc.UpdateStatus(ctx, 999, StatusConfirmed)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = svc.UpdateStatus(ctx, order.ID, StatusConfirmed)
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, order.ID, StatusPending)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateStatusSameStatusIsNoOp(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})

	updated, err := f.orderService().UpdateStatus(context.Background(), order.ID, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
}

func TestCancelReleasesStockExactlyOnce(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 2}})
	assert.Equal(t, 3, f.db.products[1].Stock)
	svc := f.orderService()
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, order.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 5, f.db.products[1].Stock)

	// duplicate cancel is a no-op and must not release again
	updated, err = svc.UpdateStatus(ctx, order.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 5, f.db.products[1].Stock)
	assert.Len(t, f.movementsFor("order_cancelled"), 1)
}

func TestCancelGatewayPaidOrderRefundsFirst(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	svc := f.orderService()
	ctx := context.Background()

	result, err := svc.CreateOrder(ctx, CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123",
		PaymentMethod: models.PaymentGateway,
		Items:         []models.OrderItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	orderID := result.Order.ID

	_, err = f.paymentService().ConfirmCallback(ctx, orderID, "tx-test")
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(ctx, orderID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.Equal(t, 1, f.gw.refundCalls)
	assert.True(t, f.db.orders[orderID].GatewayRefunded)
	assert.Equal(t, 5, f.db.products[1].Stock)
}

func TestCancelBlockedByRefundFailure(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	svc := f.orderService()
	ctx := context.Background()

	result, err := svc.CreateOrder(ctx, CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123",
		PaymentMethod: models.PaymentGateway,
		Items:         []models.OrderItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	orderID := result.Order.ID

	_, err = f.paymentService().ConfirmCallback(ctx, orderID, "tx-test")
	require.NoError(t, err)

	f.gw.refundErr = &gateway.Error{Code: gateway.CodeTimeout, Message: "timeout"}
	_, err = svc.UpdateStatus(ctx, orderID, StatusCancelled)
	require.Error(t, err)

	assert.Equal(t, StatusConfirmed, f.db.orders[orderID].Status)
	assert.False(t, f.db.orders[orderID].GatewayRefunded)
}

func TestIllegalCancelNeverReachesProvider(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	svc := f.orderService()
	ctx := context.Background()

	result, err := svc.CreateOrder(ctx, CreateOrderRequest{
		StoreSlug: "night-market", PhoneTail: "123",
		PaymentMethod: models.PaymentGateway,
		Items:         []models.OrderItemInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	orderID := result.Order.ID

	_, err = f.paymentService().ConfirmCallback(ctx, orderID, "tx-test")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, orderID, StatusFinal)
	require.NoError(t, err)

	// a settled order cannot be cancelled, so its payment must stay put
	_, err = svc.UpdateStatus(ctx, orderID, StatusCancelled)
	require.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, 0, f.gw.refundCalls)
	assert.Equal(t, StatusFinal, f.db.orders[orderID].Status)
	assert.False(t, f.db.orders[orderID].GatewayRefunded)
}

func TestCustomerStatusTransitions(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	svc := f.orderService()
	ctx := context.Background()

	_, err := svc.UpdateStatusAsCustomer(ctx, order.ID, "123", StatusArrived)
	assert.ErrorIs(t, err, ErrPermission) // not completed yet

	_, err = svc.UpdateStatus(ctx, order.ID, StatusCompleted)
	require.NoError(t, err)

	_, err = svc.UpdateStatusAsCustomer(ctx, order.ID, "999", StatusArrived)
	assert.ErrorIs(t, err, ErrPermission) // wrong phone tail

	_, err = svc.UpdateStatusAsCustomer(ctx, order.ID, "", StatusArrived)
	assert.ErrorIs(t, err, ErrPermission)

	updated, err := svc.UpdateStatusAsCustomer(ctx, order.ID, "123", StatusArrived)
	require.NoError(t, err)
	assert.Equal(t, StatusArrived, updated.Status)

	updated, err = svc.UpdateStatusAsCustomer(ctx, order.ID, "123", StatusFinal)
	require.NoError(t, err)
	assert.Equal(t, StatusFinal, updated.Status)

	_, err = svc.UpdateStatusAsCustomer(ctx, order.ID, "123", StatusCancelled)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestUpdateItemsReplacesReservation(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	f.seedProduct(2, "甘梅地瓜", 40, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 2}})
	assert.Equal(t, 3, f.db.products[1].Stock)

	updated, err := f.orderService().UpdateItems(context.Background(), order.ID, []models.OrderItemInput{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(70+120), updated.Total)
	assert.Len(t, updated.Items, 2)
	assert.Equal(t, 4, f.db.products[1].Stock)
	assert.Equal(t, 2, f.db.products[2].Stock)
}

func TestUpdateItemsFailureRestoresOriginalReservation(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	f.seedProduct(2, "甘梅地瓜", 40, 1)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 2}})

	_, err := f.orderService().UpdateItems(context.Background(), order.ID, []models.OrderItemInput{
		{ProductID: 2, Quantity: 3},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// the rollback reinstates the original items and their reservation
	assert.Equal(t, 3, f.db.products[1].Stock)
	assert.Equal(t, 1, f.db.products[2].Stock)
	stored := f.db.orders[order.ID]
	require.Len(t, stored.Items, 1)
	assert.Equal(t, int64(1), stored.Items[0].ProductID)
	assert.Equal(t, int64(140), stored.Total)
}

func TestUpdateItemsOnlyWhilePendingOrConfirmed(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 5)
	order := createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	svc := f.orderService()
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, order.ID, StatusPreparing)
	require.NoError(t, err)

	_, err = svc.UpdateItems(ctx, order.ID, []models.OrderItemInput{{ProductID: 1, Quantity: 2}})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateItems(ctx, order.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestGetLatestOrders(t *testing.T) {
	f := newFixture()
	f.seedStore()
	f.seedProduct(1, "雞排", 70, 50)
	for i := 0; i < 3; i++ {
		createCashOrder(t, f, []models.OrderItemInput{{ProductID: 1, Quantity: 1}})
	}

	orders, err := f.orderService().GetLatestOrders("night-market", 2)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	_, err = f.orderService().GetLatestOrders("nope", 2)
	assert.ErrorIs(t, err, ErrStoreNotFound)
}
