package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"stall_pos_backend/internal/models"

	"github.com/lib/pq"
)

// OrderRepository defines the interface for order-related database operations.
type OrderRepository interface {
	CreateOrder(executor SQLExecutor, order *models.Order) (int64, error)
	GetOrderByID(executor SQLExecutor, orderID int64) (*models.Order, error)
	// GetOrderForUpdate reads the order under a row lock, serializing
	// concurrent status transitions and duplicate gateway callbacks.
	GetOrderForUpdate(executor SQLExecutor, orderID int64) (*models.Order, error)
	GetOrders(filters models.OrderFilters) ([]models.Order, int, error)
	GetOrdersByStatusForUpdate(executor SQLExecutor, storeID int64, statuses []string) ([]models.Order, error)
	UpdateOrderStatus(executor SQLExecutor, orderID int64, newStatus string, completedAt *time.Time) error
	UpdateOrderStatusBulk(executor SQLExecutor, orderIDs []int64, newStatus string) (int64, error)
	UpdateOrderItems(executor SQLExecutor, orderID int64, items []models.LineItem, subtotal, total int64) error
	SetGatewayTransaction(executor SQLExecutor, orderID int64, transactionID string) error
	SetGatewayRefund(executor SQLExecutor, orderID int64, refundTransactionID string) error
	// MaxDailySerial returns the highest daily_serial assigned to the store
	// since the given instant (start of the store-local day). Callers must
	// hold the store row lock so query-then-assign cannot race.
	MaxDailySerial(executor SQLExecutor, storeID int64, since time.Time) (int, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository.
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, store_id, daily_serial, phone_tail, payment_method, items,
	                 subtotal, total, status, gateway_transaction_id, gateway_refunded,
	                 gateway_refund_transaction_id, created_at, completed_at`

func scanOrder(s scanner, order *models.Order) error {
	var itemsRaw []byte
	err := s.Scan(
		&order.ID, &order.StoreID, &order.DailySerial, &order.PhoneTail, &order.PaymentMethod,
		&itemsRaw, &order.Subtotal, &order.Total, &order.Status,
		&order.GatewayTransactionID, &order.GatewayRefunded, &order.GatewayRefundTransactionID,
		&order.CreatedAt, &order.CompletedAt,
	)
	if err != nil {
		return err
	}
	order.Items = []models.LineItem{}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
			return fmt.Errorf("decoding items snapshot for order %d: %w", order.ID, err)
		}
	}
	return nil
}

func (r *orderRepository) CreateOrder(executor SQLExecutor, order *models.Order) (int64, error) {
	itemsJSON, err := order.ItemsJSON()
	if err != nil {
		return 0, fmt.Errorf("%w: encoding items snapshot: %v", ErrDatabaseError, err)
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	query := `INSERT INTO orders
	            (store_id, daily_serial, phone_tail, payment_method, items,
	             subtotal, total, status, gateway_transaction_id, gateway_refunded,
	             gateway_refund_transaction_id, created_at, completed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	          RETURNING id`
	err = executor.QueryRow(query,
		order.StoreID, order.DailySerial, order.PhoneTail, order.PaymentMethod, itemsJSON,
		order.Subtotal, order.Total, order.Status, order.GatewayTransactionID, order.GatewayRefunded,
		order.GatewayRefundTransactionID, order.CreatedAt, order.CompletedAt,
	).Scan(&order.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return 0, fmt.Errorf("%w: daily serial %d already taken for store %d", ErrDuplicateKey, order.DailySerial, order.StoreID)
		}
		return 0, fmt.Errorf("%w: creating order: %v", ErrDatabaseError, err)
	}
	return order.ID, nil
}

func (r *orderRepository) GetOrderByID(executor SQLExecutor, orderID int64) (*models.Order, error) {
	if executor == nil {
		executor = r.db
	}
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := scanOrder(executor.QueryRow(query, orderID), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: getting order by ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) GetOrderForUpdate(executor SQLExecutor, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	if err := scanOrder(executor.QueryRow(query, orderID), order); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: locking order ID %d: %v", ErrDatabaseError, orderID, err)
	}
	return order, nil
}

func (r *orderRepository) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	orders := []models.Order{}
	totalCount := 0

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + orderColumns + `, COUNT(*) OVER() AS total_count FROM orders`)

	var conditions []string
	var args []interface{}
	argCounter := 1

	if filters.StoreID != nil {
		conditions = append(conditions, fmt.Sprintf("store_id = $%d", argCounter))
		args = append(args, *filters.StoreID)
		argCounter++
	}
	if filters.Status != nil && *filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argCounter))
		args = append(args, *filters.Status)
		argCounter++
	}
	if filters.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argCounter))
		args = append(args, *filters.Since)
		argCounter++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY created_at DESC, id DESC")

	if filters.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.Limit)
		argCounter++
	} else if filters.PageSize > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argCounter))
		args = append(args, filters.PageSize)
		argCounter++
		if filters.Page > 1 {
			queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argCounter))
			args = append(args, (filters.Page-1)*filters.PageSize)
		}
	}

	rows, err := r.db.Query(queryBuilder.String(), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: querying orders: %v", ErrDatabaseError, err)
	}
	defer rows.Close()

	for rows.Next() {
		var order models.Order
		var itemsRaw []byte
		if err := rows.Scan(
			&order.ID, &order.StoreID, &order.DailySerial, &order.PhoneTail, &order.PaymentMethod,
			&itemsRaw, &order.Subtotal, &order.Total, &order.Status,
			&order.GatewayTransactionID, &order.GatewayRefunded, &order.GatewayRefundTransactionID,
			&order.CreatedAt, &order.CompletedAt, &totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("%w: scanning order: %v", ErrDatabaseError, err)
		}
		order.Items = []models.LineItem{}
		if len(itemsRaw) > 0 {
			if err := json.Unmarshal(itemsRaw, &order.Items); err != nil {
				return nil, 0, fmt.Errorf("%w: decoding items snapshot for order %d: %v", ErrDatabaseError, order.ID, err)
			}
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("%w: iterating order rows: %v", ErrDatabaseError, err)
	}
	return orders, totalCount, nil
}

func (r *orderRepository) GetOrdersByStatusForUpdate(executor SQLExecutor, storeID int64, statuses []string) ([]models.Order, error) {
	orders := []models.Order{}
	query := `SELECT ` + orderColumns + `
	          FROM orders
	          WHERE store_id = $1 AND status = ANY($2)
	          ORDER BY id
	          FOR UPDATE`
	rows, err := executor.Query(query, storeID, pq.Array(statuses))
	if err != nil {
		return nil, fmt.Errorf("%w: locking orders by status for store %d: %v", ErrDatabaseError, storeID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("%w: scanning locked order: %v", ErrDatabaseError, err)
		}
		orders = append(orders, order)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating locked order rows: %v", ErrDatabaseError, err)
	}
	return orders, nil
}

func (r *orderRepository) UpdateOrderStatus(executor SQLExecutor, orderID int64, newStatus string, completedAt *time.Time) error {
	var result sql.Result
	var err error
	if completedAt != nil {
		// completed_at is written once; COALESCE keeps the first stamp.
		result, err = executor.Exec(
			`UPDATE orders SET status = $1, completed_at = COALESCE(completed_at, $2) WHERE id = $3`,
			newStatus, *completedAt, orderID)
	} else {
		result, err = executor.Exec(`UPDATE orders SET status = $1 WHERE id = $2`, newStatus, orderID)
	}
	if err != nil {
		return fmt.Errorf("%w: updating status for order %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) UpdateOrderStatusBulk(executor SQLExecutor, orderIDs []int64, newStatus string) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	result, err := executor.Exec(
		`UPDATE orders SET status = $1 WHERE id = ANY($2)`,
		newStatus, pq.Array(orderIDs))
	if err != nil {
		return 0, fmt.Errorf("%w: bulk status update to %q: %v", ErrDatabaseError, newStatus, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected for bulk status update: %v", ErrDatabaseError, err)
	}
	return rowsAffected, nil
}

func (r *orderRepository) UpdateOrderItems(executor SQLExecutor, orderID int64, items []models.LineItem, subtotal, total int64) error {
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: encoding items snapshot: %v", ErrDatabaseError, err)
	}
	result, err := executor.Exec(
		`UPDATE orders SET items = $1, subtotal = $2, total = $3 WHERE id = $4`,
		itemsJSON, subtotal, total, orderID)
	if err != nil {
		return fmt.Errorf("%w: updating items for order %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) SetGatewayTransaction(executor SQLExecutor, orderID int64, transactionID string) error {
	result, err := executor.Exec(
		`UPDATE orders SET gateway_transaction_id = $1 WHERE id = $2`,
		transactionID, orderID)
	if err != nil {
		return fmt.Errorf("%w: setting gateway transaction for order %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) SetGatewayRefund(executor SQLExecutor, orderID int64, refundTransactionID string) error {
	result, err := executor.Exec(
		`UPDATE orders SET gateway_refunded = TRUE, gateway_refund_transaction_id = $1 WHERE id = $2`,
		refundTransactionID, orderID)
	if err != nil {
		return fmt.Errorf("%w: setting gateway refund for order %d: %v", ErrDatabaseError, orderID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *orderRepository) MaxDailySerial(executor SQLExecutor, storeID int64, since time.Time) (int, error) {
	var maxSerial int
	query := `SELECT COALESCE(MAX(daily_serial), 0) FROM orders WHERE store_id = $1 AND created_at >= $2`
	if err := executor.QueryRow(query, storeID, since).Scan(&maxSerial); err != nil {
		return 0, fmt.Errorf("%w: getting max daily serial for store %d: %v", ErrDatabaseError, storeID, err)
	}
	return maxSerial, nil
}
