package services

import (
	"errors"
	"fmt"
)

// Custom errors shared by the service layer. Handlers map these onto HTTP
// status codes; repositories and the gateway never leak raw faults past here.
var (
	ErrValidation       = errors.New("validation failed")
	ErrStoreNotFound    = errors.New("store not found or not active")
	ErrProductNotFound  = errors.New("product not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCategoryInUse    = errors.New("category still has products attached")
	ErrPermission       = errors.New("operation not permitted")
	ErrConflict         = errors.New("conflicting state")
	ErrInvalidStatus    = errors.New("invalid order status")
	ErrBadCredentials   = errors.New("invalid username or password")
)

// InsufficientStockError reports a failed reservation with the product name
// and remaining quantity for customer display.
type InsufficientStockError struct {
	ProductName string
	Remaining   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("%s 庫存不足 (剩餘 %d)", e.ProductName, e.Remaining)
}

// InactiveProductError reports an order line against a soft-deleted product.
type InactiveProductError struct {
	ProductName string
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("%s 目前不供應", e.ProductName)
}
