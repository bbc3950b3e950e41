package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/metrics"
	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/repositories"
)

// CreateOrderRequest is the order-creation input after HTTP binding.
type CreateOrderRequest struct {
	StoreSlug     string                  `json:"store_slug" binding:"required"`
	PhoneTail     string                  `json:"phone_tail" binding:"required"`
	PaymentMethod string                  `json:"payment_method"`
	Items         []models.OrderItemInput `json:"items" binding:"required"`
}

// CreateOrderResult is the created order plus, for gateway payments, the
// provider redirect the customer pays at.
type CreateOrderResult struct {
	Order      *models.Order `json:"order"`
	PaymentURL string        `json:"payment_url,omitempty"`
}

// OrderService implements the order aggregate: creation with stock
// reservation, the status state machine, and staff item edits.
type OrderService interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error)
	GetOrderByID(orderID int64) (*models.Order, error)
	GetOrders(filters models.OrderFilters) ([]models.Order, int, error)
	GetLatestOrders(storeSlug string, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, newStatus string) (*models.Order, error)
	UpdateStatusAsCustomer(ctx context.Context, orderID int64, phoneTail, newStatus string) (*models.Order, error)
	UpdateItems(ctx context.Context, orderID int64, items []models.OrderItemInput) (*models.Order, error)
}

type orderService struct {
	storeRepo   repositories.StoreRepository
	catalogRepo repositories.CatalogRepository
	orderRepo   repositories.OrderRepository
	tx          repositories.TxRunner
	gw          gateway.Client
	payments    PaymentService
}

// NewOrderService creates a new instance of OrderService.
func NewOrderService(
	sr repositories.StoreRepository,
	cr repositories.CatalogRepository,
	or repositories.OrderRepository,
	tx repositories.TxRunner,
	gw gateway.Client,
	ps PaymentService,
) OrderService {
	return &orderService{
		storeRepo:   sr,
		catalogRepo: cr,
		orderRepo:   or,
		tx:          tx,
		gw:          gw,
		payments:    ps,
	}
}

// startOfDay returns midnight of the instant's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// reserveLine atomically reserves one normalized line and returns the
// snapshot for the order's items column. On a conditional-decrement miss the
// product is re-read to tell insufficient stock from a vanished or
// deactivated product.
func (s *orderService) reserveLine(ex repositories.SQLExecutor, line models.OrderItemInput) (*models.LineItem, error) {
	product, err := s.catalogRepo.GetProductByID(ex, line.ProductID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, line.ProductID)
		}
		return nil, err
	}
	if !product.IsActive {
		return nil, &InactiveProductError{ProductName: product.Name}
	}

	if _, err := s.catalogRepo.ReserveStock(ex, line.ProductID, line.Quantity); err != nil {
		if errors.Is(err, repositories.ErrStockConflict) {
			metrics.StockConflicts.Inc()
			current, readErr := s.catalogRepo.GetProductByID(ex, line.ProductID)
			if readErr != nil {
				if errors.Is(readErr, repositories.ErrNotFound) {
					return nil, fmt.Errorf("%w: product %d", ErrProductNotFound, line.ProductID)
				}
				return nil, readErr
			}
			if !current.IsActive {
				return nil, &InactiveProductError{ProductName: current.Name}
			}
			return nil, &InsufficientStockError{ProductName: current.Name, Remaining: current.Stock}
		}
		return nil, err
	}

	snapshot := &models.LineItem{
		ProductID: product.ID,
		Name:      product.Name,
		UnitPrice: product.Price,
		Quantity:  line.Quantity,
	}
	if product.Category != nil {
		snapshot.CategorySlug = product.Category.Slug
		snapshot.CategoryName = product.Category.Name
	}
	return snapshot, nil
}

// CreateOrder reserves stock and persists the order atomically; the entire
// reservation set succeeds or none does. For gateway payments the pending
// order is committed first, the provider is called with no locks held, and a
// provider failure cancels the order in a second short transaction.
func (s *orderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	store, err := s.storeRepo.GetStoreBySlug(req.StoreSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	if !store.IsActive {
		return nil, ErrStoreNotFound
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentCash
	}
	switch paymentMethod {
	case models.PaymentCash:
	case models.PaymentGateway:
		if !store.PaymentEnabled {
			return nil, fmt.Errorf("%w: store %s does not accept gateway payment", ErrValidation, store.Slug)
		}
	default:
		return nil, fmt.Errorf("%w: unknown payment method %q", ErrValidation, paymentMethod)
	}

	lines := models.NormalizeOrderItems(req.Items)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: order has no items", ErrValidation)
	}

	now := time.Now()
	order := &models.Order{
		StoreID:       store.ID,
		PhoneTail:     req.PhoneTail,
		PaymentMethod: paymentMethod,
		Status:        StatusPending,
		CreatedAt:     now,
	}

	err = s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		// The store row lock serializes daily-serial assignment per store.
		if err := s.storeRepo.LockStore(ex, store.ID); err != nil {
			return err
		}

		items := make([]models.LineItem, 0, len(lines))
		for _, line := range lines {
			snapshot, err := s.reserveLine(ex, line)
			if err != nil {
				return err
			}
			items = append(items, *snapshot)
		}
		order.Items = items
		order.UpdateTotal()

		dayStart := startOfDay(now, store.Location())
		maxSerial, err := s.orderRepo.MaxDailySerial(ex, store.ID, dayStart)
		if err != nil {
			return err
		}
		order.DailySerial = maxSerial + 1

		if _, err := s.orderRepo.CreateOrder(ex, order); err != nil {
			return err
		}

		for _, item := range order.Items {
			orderID := order.ID
			movement := models.StockMovement{
				ProductID: item.ProductID,
				OrderID:   &orderID,
				Change:    -item.Quantity,
				Reason:    "order_create",
			}
			if _, err := s.catalogRepo.CreateStockMovement(ex, &movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(strconv.FormatInt(store.ID, 10), paymentMethod).Inc()

	if paymentMethod != models.PaymentGateway {
		return &CreateOrderResult{Order: order}, nil
	}

	payment, gwErr := s.gw.RequestPayment(ctx, order)
	metrics.ObserveGatewayCall("request", gwErr)
	if gwErr != nil {
		// The provider never accepted the request: free the reservation.
		cancelErr := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
			locked, err := s.orderRepo.GetOrderForUpdate(ex, order.ID)
			if err != nil {
				return err
			}
			if locked.Status != StatusPending {
				return nil
			}
			if err := releaseOrderStock(ex, s.catalogRepo, locked, "payment_request_failed"); err != nil {
				return err
			}
			return s.orderRepo.UpdateOrderStatus(ex, order.ID, StatusCancelled, nil)
		})
		if cancelErr != nil {
			return nil, fmt.Errorf("cancelling order %d after gateway failure: %w", order.ID, cancelErr)
		}
		metrics.OrdersCancelled.WithLabelValues(strconv.FormatInt(order.StoreID, 10)).Inc()
		return nil, gwErr
	}

	err = s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		return s.orderRepo.SetGatewayTransaction(ex, order.ID, payment.TransactionID)
	})
	if err != nil {
		return nil, err
	}
	order.GatewayTransactionID = &payment.TransactionID

	return &CreateOrderResult{Order: order, PaymentURL: payment.PaymentURL}, nil
}

func (s *orderService) GetOrderByID(orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderByID(nil, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *orderService) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	return s.orderRepo.GetOrders(filters)
}

func (s *orderService) GetLatestOrders(storeSlug string, limit int) ([]models.Order, error) {
	store, err := s.storeRepo.GetStoreBySlug(storeSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}
	if limit <= 0 {
		limit = 30
	}
	orders, _, err := s.orderRepo.GetOrders(models.OrderFilters{StoreID: &store.ID, Limit: limit})
	return orders, err
}

// applyTransition performs one state-machine move under the order row lock.
// customer restricts the transition set to the self-service moves.
func (s *orderService) applyTransition(orderID int64, newStatus string, customer bool, phoneTail string) (*models.Order, error) {
	if !IsValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, newStatus)
	}
	if newStatus == StatusArchived {
		// Only the daily rollup archives orders.
		return nil, fmt.Errorf("%w: orders are archived by the daily reset only", ErrPermission)
	}

	var order *models.Order
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		locked, err := s.orderRepo.GetOrderForUpdate(ex, orderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if customer {
			if locked.PhoneTail != phoneTail {
				return fmt.Errorf("%w: phone tail mismatch", ErrPermission)
			}
			if !CustomerCanTransition(locked.Status, newStatus) {
				return fmt.Errorf("%w: customers may not move %s to %s", ErrPermission, locked.Status, newStatus)
			}
		}
		if locked.Status == newStatus {
			order = locked // duplicate request, nothing to do
			return nil
		}
		if !CanTransition(locked.Status, newStatus) {
			return fmt.Errorf("%w: cannot move order %d from %s to %s", ErrConflict, orderID, locked.Status, newStatus)
		}

		if ReleasesStock(locked.Status, newStatus) {
			if err := releaseOrderStock(ex, s.catalogRepo, locked, "order_cancelled"); err != nil {
				return err
			}
		}

		var completedAt *time.Time
		if StampsCompletion(newStatus) && locked.CompletedAt == nil {
			t := time.Now()
			completedAt = &t
			locked.CompletedAt = &t
		}
		if err := s.orderRepo.UpdateOrderStatus(ex, orderID, newStatus, completedAt); err != nil {
			return err
		}
		locked.Status = newStatus
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	if newStatus == StatusCancelled {
		metrics.OrdersCancelled.WithLabelValues(strconv.FormatInt(order.StoreID, 10)).Inc()
	}
	return order, nil
}

// UpdateStatus is the staff-driven transition entry point. Cancelling a
// gateway-paid order refunds it first; a refund failure blocks the
// cancellation so a paid order is never dropped without its money returned.
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, newStatus string) (*models.Order, error) {
	if newStatus == StatusCancelled {
		order, err := s.orderRepo.GetOrderByID(nil, orderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, ErrOrderNotFound
			}
			return nil, err
		}
		if !CanTransition(order.Status, StatusCancelled) {
			// The refund belongs to the cancellation; if the move itself is
			// illegal, the provider must not be touched.
			return s.applyTransition(orderID, newStatus, false, "")
		}
		paidViaGateway := order.PaymentMethod == models.PaymentGateway &&
			order.GatewayTransactionID != nil &&
			order.Status != StatusPending
		if paidViaGateway && !order.GatewayRefunded {
			if _, err := s.payments.RefundOrder(ctx, orderID); err != nil {
				return nil, err
			}
		}
	}
	return s.applyTransition(orderID, newStatus, false, "")
}

// UpdateStatusAsCustomer is the unauthenticated self-service path: only
// completed→arrived or settling into final, and only with a matching phone
// tail.
func (s *orderService) UpdateStatusAsCustomer(ctx context.Context, orderID int64, phoneTail, newStatus string) (*models.Order, error) {
	if phoneTail == "" {
		return nil, fmt.Errorf("%w: missing phone tail", ErrPermission)
	}
	return s.applyTransition(orderID, newStatus, true, phoneTail)
}

// UpdateItems replaces the order's line items: fully release the old
// reservation, re-reserve against the new list, recompute totals, all in
// one transaction, so a partway reservation failure rolls everything back
// and the original reservation stands untouched.
func (s *orderService) UpdateItems(ctx context.Context, orderID int64, items []models.OrderItemInput) (*models.Order, error) {
	lines := models.NormalizeOrderItems(items)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: edited order has no items", ErrValidation)
	}

	var order *models.Order
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		locked, err := s.orderRepo.GetOrderForUpdate(ex, orderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if locked.Status != StatusPending && locked.Status != StatusConfirmed {
			return fmt.Errorf("%w: items are editable only while pending or confirmed, order %d is %s",
				ErrConflict, orderID, locked.Status)
		}

		if err := releaseOrderStock(ex, s.catalogRepo, locked, "item_edit_release"); err != nil {
			return err
		}

		newItems := make([]models.LineItem, 0, len(lines))
		for _, line := range lines {
			snapshot, err := s.reserveLine(ex, line)
			if err != nil {
				return err
			}
			newItems = append(newItems, *snapshot)

			oid := locked.ID
			movement := models.StockMovement{
				ProductID: snapshot.ProductID,
				OrderID:   &oid,
				Change:    -snapshot.Quantity,
				Reason:    "item_edit_reserve",
			}
			if _, err := s.catalogRepo.CreateStockMovement(ex, &movement); err != nil {
				return err
			}
		}

		locked.Items = newItems
		locked.UpdateTotal()
		if err := s.orderRepo.UpdateOrderItems(ex, orderID, locked.Items, locked.Subtotal, locked.Total); err != nil {
			return err
		}
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
