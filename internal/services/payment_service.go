package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/metrics"
	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/repositories"
)

// PaymentService reconciles payment-provider results against order state.
// Callbacks arrive at-least-once and out of order; every operation here is
// idempotent under the order row lock.
type PaymentService interface {
	ConfirmCallback(ctx context.Context, orderID int64, providerTransactionID string) (*models.Order, error)
	CancelCallback(ctx context.Context, orderID int64) (*models.Order, error)
	RefundOrder(ctx context.Context, orderID int64) (*models.Order, error)
}

type paymentService struct {
	orderRepo   repositories.OrderRepository
	catalogRepo repositories.CatalogRepository
	tx          repositories.TxRunner
	gw          gateway.Client
}

// NewPaymentService creates a new instance of PaymentService.
func NewPaymentService(
	or repositories.OrderRepository,
	cr repositories.CatalogRepository,
	tx repositories.TxRunner,
	gw gateway.Client,
) PaymentService {
	return &paymentService{orderRepo: or, catalogRepo: cr, tx: tx, gw: gw}
}

// releaseOrderStock returns every reserved line of the order to the catalog
// and records the movements. Callers guarantee at-most-once by only invoking
// it on a transition out of a reservation-holding status.
func releaseOrderStock(ex repositories.SQLExecutor, catalogRepo repositories.CatalogRepository, order *models.Order, reason string) error {
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			continue
		}
		if _, err := catalogRepo.ReleaseStock(ex, item.ProductID, item.Quantity); err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue // product deleted since reservation
			}
			return fmt.Errorf("releasing stock for product %d: %w", item.ProductID, err)
		}
		orderID := order.ID
		movement := models.StockMovement{
			ProductID: item.ProductID,
			OrderID:   &orderID,
			Change:    item.Quantity,
			Reason:    reason,
		}
		if _, err := catalogRepo.CreateStockMovement(ex, &movement); err != nil {
			return fmt.Errorf("recording stock movement for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

// ConfirmCallback handles the provider's confirm redirect/webhook. The
// provider call runs between two short transactions so no row lock is held
// across outbound HTTP; the second transaction re-checks state, which makes
// duplicate deliveries converge to a single confirmed transition.
func (s *paymentService) ConfirmCallback(ctx context.Context, orderID int64, providerTransactionID string) (*models.Order, error) {
	if providerTransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", ErrValidation)
	}

	order, err := s.orderRepo.GetOrderByID(nil, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.PaymentMethod != models.PaymentGateway {
		return nil, fmt.Errorf("%w: order %d was not placed through the payment gateway", ErrValidation, orderID)
	}
	switch order.Status {
	case StatusPending:
		// fall through to the provider confirm
	case StatusCancelled, StatusArchived:
		return nil, fmt.Errorf("%w: order %d is %s", ErrConflict, orderID, order.Status)
	default:
		// Already confirmed (or further along): duplicate delivery, no-op.
		return order, nil
	}

	confirmErr := s.gw.ConfirmPayment(ctx, providerTransactionID, order.Total)
	metrics.ObserveGatewayCall("confirm", confirmErr)

	if confirmErr != nil {
		// Payment did not go through: free the reservation, unless a
		// concurrent delivery confirmed the order in the meantime.
		txErr := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
			locked, err := s.orderRepo.GetOrderForUpdate(ex, orderID)
			if err != nil {
				return err
			}
			if locked.Status != StatusPending {
				order = locked
				return nil
			}
			if err := releaseOrderStock(ex, s.catalogRepo, locked, "payment_failed"); err != nil {
				return err
			}
			return s.orderRepo.UpdateOrderStatus(ex, orderID, StatusCancelled, nil)
		})
		if txErr != nil {
			return nil, txErr
		}
		if order.Status != StatusPending {
			return order, nil
		}
		metrics.OrdersCancelled.WithLabelValues(strconv.FormatInt(order.StoreID, 10)).Inc()
		return nil, confirmErr
	}

	err = s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		locked, err := s.orderRepo.GetOrderForUpdate(ex, orderID)
		if err != nil {
			return err
		}
		if locked.Status != StatusPending {
			order = locked
			return nil
		}
		if err := s.orderRepo.SetGatewayTransaction(ex, orderID, providerTransactionID); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateOrderStatus(ex, orderID, StatusConfirmed, nil); err != nil {
			return err
		}
		locked.Status = StatusConfirmed
		locked.GatewayTransactionID = &providerTransactionID
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelCallback handles the provider's cancel redirect. A confirmed (paid)
// order cannot be cancelled through this path; refunds go through
// RefundOrder instead.
func (s *paymentService) CancelCallback(ctx context.Context, orderID int64) (*models.Order, error) {
	var order *models.Order
	err := s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		locked, err := s.orderRepo.GetOrderForUpdate(ex, orderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if locked.PaymentMethod != models.PaymentGateway {
			return fmt.Errorf("%w: order %d was not placed through the payment gateway", ErrValidation, orderID)
		}
		order = locked
		if locked.Status != StatusPending {
			return nil // paid or already resolved: no-op
		}
		if err := releaseOrderStock(ex, s.catalogRepo, locked, "payment_cancelled"); err != nil {
			return err
		}
		if err := s.orderRepo.UpdateOrderStatus(ex, orderID, StatusCancelled, nil); err != nil {
			return err
		}
		locked.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	if order.Status == StatusCancelled {
		metrics.OrdersCancelled.WithLabelValues(strconv.FormatInt(order.StoreID, 10)).Inc()
	}
	return order, nil
}

// RefundOrder refunds a gateway-paid order. Idempotent: once
// gateway_refunded is set, the provider is never called again.
func (s *paymentService) RefundOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orderRepo.GetOrderByID(nil, orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.PaymentMethod != models.PaymentGateway || order.GatewayTransactionID == nil {
		return nil, fmt.Errorf("%w: order %d has no gateway payment to refund", ErrValidation, orderID)
	}
	if order.GatewayRefunded {
		return order, nil
	}

	refundTransactionID, refundErr := s.gw.RefundPayment(ctx, *order.GatewayTransactionID)
	metrics.ObserveGatewayCall("refund", refundErr)
	if refundErr != nil {
		return nil, refundErr
	}

	err = s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		locked, err := s.orderRepo.GetOrderForUpdate(ex, orderID)
		if err != nil {
			return err
		}
		if locked.GatewayRefunded {
			order = locked
			return nil
		}
		if err := s.orderRepo.SetGatewayRefund(ex, orderID, refundTransactionID); err != nil {
			return err
		}
		locked.GatewayRefunded = true
		locked.GatewayRefundTransactionID = &refundTransactionID
		order = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
