package services

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"stall_pos_backend/internal/metrics"
	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/repositories"
)

// UncategorizedSlug buckets line items whose snapshot carries no category.
const UncategorizedSlug = "uncategorized"

// ReportService implements the daily rollup and the reporting aggregates.
type ReportService interface {
	ResetDaily(storeSlug string) (*models.ResetDailyResult, error)
	DashboardStats(storeSlug string) (*models.DashboardStats, error)
}

type reportService struct {
	storeRepo   repositories.StoreRepository
	catalogRepo repositories.CatalogRepository
	orderRepo   repositories.OrderRepository
	tx          repositories.TxRunner
}

// NewReportService creates a new instance of ReportService.
func NewReportService(
	sr repositories.StoreRepository,
	cr repositories.CatalogRepository,
	or repositories.OrderRepository,
	tx repositories.TxRunner,
) ReportService {
	return &reportService{storeRepo: sr, catalogRepo: cr, orderRepo: or, tx: tx}
}

// ResetDaily closes out a store's day: every in-flight order is cancelled
// with its stock released, every final order is archived. Stock releases are
// coalesced into one increment per product. Safe to re-run: a second pass
// finds nothing in flight and nothing left in final.
func (s *reportService) ResetDaily(storeSlug string) (*models.ResetDailyResult, error) {
	store, err := s.storeRepo.GetStoreBySlug(storeSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}

	result := &models.ResetDailyResult{}
	err = s.tx.RunInTx(func(ex repositories.SQLExecutor) error {
		if err := s.storeRepo.LockStore(ex, store.ID); err != nil {
			return err
		}

		inFlight, err := s.orderRepo.GetOrdersByStatusForUpdate(ex, store.ID, InFlightStatuses)
		if err != nil {
			return err
		}

		releases := map[int64]int{}
		ids := make([]int64, 0, len(inFlight))
		for _, order := range inFlight {
			ids = append(ids, order.ID)
			for _, item := range order.Items {
				if item.Quantity > 0 {
					releases[item.ProductID] += item.Quantity
				}
			}
		}

		if err := s.catalogRepo.ReleaseStockBatch(ex, releases); err != nil {
			return err
		}
		for productID, quantity := range releases {
			movement := models.StockMovement{
				ProductID: productID,
				Change:    quantity,
				Reason:    "daily_reset",
			}
			if _, err := s.catalogRepo.CreateStockMovement(ex, &movement); err != nil {
				return err
			}
			result.ReleasedUnits += quantity
		}

		cancelled, err := s.orderRepo.UpdateOrderStatusBulk(ex, ids, StatusCancelled)
		if err != nil {
			return err
		}
		result.CancelledOrders = int(cancelled)

		finals, err := s.orderRepo.GetOrdersByStatusForUpdate(ex, store.ID, []string{StatusFinal})
		if err != nil {
			return err
		}
		finalIDs := make([]int64, 0, len(finals))
		for _, order := range finals {
			finalIDs = append(finalIDs, order.ID)
		}
		archived, err := s.orderRepo.UpdateOrderStatusBulk(ex, finalIDs, StatusArchived)
		if err != nil {
			return err
		}
		result.ArchivedOrders = int(archived)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.CancelledOrders > 0 {
		metrics.OrdersCancelled.WithLabelValues(strconv.FormatInt(store.ID, 10)).
			Add(float64(result.CancelledOrders))
	}
	return result, nil
}

// DashboardStats aggregates revenue and quantities for the store-local
// "today" and "this month" windows, over every order that counts toward
// revenue (completed, final, and archived; archiving never erases revenue).
func (s *reportService) DashboardStats(storeSlug string) (*models.DashboardStats, error) {
	store, err := s.storeRepo.GetStoreBySlug(storeSlug)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}

	loc := store.Location()
	now := time.Now().In(loc)
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)

	monthOrders, _, err := s.orderRepo.GetOrders(models.OrderFilters{StoreID: &store.ID, Since: &monthStart})
	if err != nil {
		return nil, err
	}

	todayOrders := make([]models.Order, 0, len(monthOrders))
	for _, order := range monthOrders {
		if !order.CreatedAt.Before(todayStart) {
			todayOrders = append(todayOrders, order)
		}
	}

	return &models.DashboardStats{
		StoreName:  store.Name,
		Today:      AggregatePeriod(todayOrders),
		Monthly:    AggregatePeriod(monthOrders),
		UpdateTime: now.Format("2006-01-02 15:04:05"),
	}, nil
}

// AggregatePeriod rolls revenue-counting orders up by category slug and item
// name. Exported for the reporting tests.
func AggregatePeriod(orders []models.Order) models.PeriodStats {
	stats := models.PeriodStats{Categories: map[string]*models.CategoryStats{}}
	for _, order := range orders {
		if !slices.Contains(RevenueStatuses, order.Status) {
			continue
		}
		stats.Revenue += order.Total
		stats.OrderCount++

		for _, item := range order.Items {
			if item.Quantity <= 0 {
				continue
			}
			slug := item.CategorySlug
			name := item.CategoryName
			if slug == "" {
				slug = UncategorizedSlug
				name = UncategorizedSlug
			}
			category := stats.Categories[slug]
			if category == nil {
				category = &models.CategoryStats{Name: name, Items: map[string]*models.ItemStats{}}
				stats.Categories[slug] = category
			}
			lineRevenue := item.UnitPrice * int64(item.Quantity)
			category.Quantity += item.Quantity
			category.Revenue += lineRevenue

			itemStats := category.Items[item.Name]
			if itemStats == nil {
				itemStats = &models.ItemStats{}
				category.Items[item.Name] = itemStats
			}
			itemStats.Quantity += item.Quantity
			itemStats.Revenue += lineRevenue
		}
	}
	return stats
}
