package models

import (
	"encoding/json"
	"time"
)

// Payment methods accepted at order creation.
const (
	PaymentCash    = "cash"
	PaymentGateway = "gateway"
)

// LineItem is a point-in-time snapshot of a product taken when the order is
// created (or edited by staff). Later catalog edits never change it.
type LineItem struct {
	ProductID    int64  `json:"product_id"`
	Name         string `json:"name"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int    `json:"quantity"`
	CategorySlug string `json:"category_slug"`
	CategoryName string `json:"category_name"`
}

// Order is the aggregate root for a customer order. Items persist as a JSON
// snapshot, not as a joined table.
type Order struct {
	ID                         int64      `json:"id"`
	StoreID                    int64      `json:"store_id"`
	DailySerial                int        `json:"daily_serial"`
	PhoneTail                  string     `json:"phone_tail"`
	PaymentMethod              string     `json:"payment_method"`
	Items                      []LineItem `json:"items"`
	Subtotal                   int64      `json:"subtotal"`
	Total                      int64      `json:"total"`
	Status                     string     `json:"status"`
	GatewayTransactionID       *string    `json:"gateway_transaction_id"`
	GatewayRefunded            bool       `json:"gateway_refunded"`
	GatewayRefundTransactionID *string    `json:"gateway_refund_transaction_id"`
	CreatedAt                  time.Time  `json:"created_at"`
	CompletedAt                *time.Time `json:"completed_at"`
}

// UpdateTotal recomputes subtotal and total from the item snapshot. Totals
// are never independently settable; this is the only way they change.
func (o *Order) UpdateTotal() {
	var sum int64
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			continue
		}
		sum += it.UnitPrice * int64(it.Quantity)
	}
	o.Subtotal = sum
	o.Total = sum
}

// ItemsJSON marshals the snapshot for the jsonb column.
func (o *Order) ItemsJSON() ([]byte, error) {
	if o.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.Items)
}

// OrderItemInput is a single requested line in an order-creation or item-edit
// request. The legacy "qty" alias is accepted here, at the ingestion boundary
// only; everything past normalization uses the canonical Quantity field.
type OrderItemInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	Qty       int   `json:"qty"`
}

// NormalizedQuantity resolves the quantity/qty aliasing.
func (i OrderItemInput) NormalizedQuantity() int {
	if i.Quantity > 0 {
		return i.Quantity
	}
	return i.Qty
}

// NormalizeOrderItems canonicalizes raw request lines: the qty alias is
// folded into quantity, duplicate product lines are merged, and non-positive
// quantities are dropped silently, matching the tolerant behavior of the
// storefront clients.
func NormalizeOrderItems(in []OrderItemInput) []OrderItemInput {
	out := make([]OrderItemInput, 0, len(in))
	index := make(map[int64]int, len(in))
	for _, raw := range in {
		q := raw.NormalizedQuantity()
		if raw.ProductID <= 0 || q <= 0 {
			continue
		}
		if pos, ok := index[raw.ProductID]; ok {
			out[pos].Quantity += q
			continue
		}
		index[raw.ProductID] = len(out)
		out = append(out, OrderItemInput{ProductID: raw.ProductID, Quantity: q})
	}
	return out
}

// OrderFilters defines the available filters for querying orders.
type OrderFilters struct {
	StoreID  *int64
	Status   *string
	Since    *time.Time
	Limit    int
	Page     int
	PageSize int
}

// StockMovement is one row of the stock audit ledger. Change is negative for
// reservations and positive for releases.
type StockMovement struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	OrderID   *int64    `json:"order_id"`
	Change    int       `json:"change"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
