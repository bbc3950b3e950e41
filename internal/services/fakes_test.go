package services

import (
	"context"
	"slices"
	"sort"
	"time"

	"stall_pos_backend/internal/gateway"
	"stall_pos_backend/internal/models"
	"stall_pos_backend/internal/repositories"
)

// fakeDB is an in-memory stand-in for the database, shared by the repository
// fakes. The fake TxRunner snapshots and restores it so service-level
// rollback behavior is observable in tests.
type fakeDB struct {
	stores    map[int64]*models.Store
	products  map[int64]*models.Product
	orders    map[int64]*models.Order
	movements []models.StockMovement

	nextOrderID    int64
	nextMovementID int64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		stores:      map[int64]*models.Store{},
		products:    map[int64]*models.Product{},
		orders:      map[int64]*models.Order{},
		nextOrderID: 1,
	}
}

func (db *fakeDB) addStore(s models.Store) *models.Store {
	stored := s
	db.stores[s.ID] = &stored
	return &stored
}

func (db *fakeDB) addProduct(p models.Product) *models.Product {
	stored := p
	db.products[p.ID] = &stored
	return &stored
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Items = slices.Clone(o.Items)
	return &c
}

type fakeSnapshot struct {
	products  map[int64]models.Product
	orders    map[int64]models.Order
	movements []models.StockMovement
}

func (db *fakeDB) snapshot() fakeSnapshot {
	snap := fakeSnapshot{
		products:  map[int64]models.Product{},
		orders:    map[int64]models.Order{},
		movements: slices.Clone(db.movements),
	}
	for id, p := range db.products {
		snap.products[id] = *p
	}
	for id, o := range db.orders {
		snap.orders[id] = *cloneOrder(o)
	}
	return snap
}

func (db *fakeDB) restore(snap fakeSnapshot) {
	db.products = map[int64]*models.Product{}
	for id, p := range snap.products {
		stored := p
		db.products[id] = &stored
	}
	db.orders = map[int64]*models.Order{}
	for id, o := range snap.orders {
		db.orders[id] = cloneOrder(&o)
	}
	db.movements = snap.movements
}

// fakeTxRunner mimics transactional semantics: on error the whole fake
// database rolls back to its pre-transaction state.
type fakeTxRunner struct {
	db *fakeDB
}

func (r *fakeTxRunner) RunInTx(fn func(ex repositories.SQLExecutor) error) error {
	snap := r.db.snapshot()
	if err := fn(nil); err != nil {
		r.db.restore(snap)
		return err
	}
	return nil
}

// --- store repository fake ---

type fakeStoreRepo struct {
	db        *fakeDB
	lockCalls int
}

func (r *fakeStoreRepo) CreateStore(_ repositories.SQLExecutor, store *models.Store) (int64, error) {
	r.db.addStore(*store)
	return store.ID, nil
}

func (r *fakeStoreRepo) GetStoreByID(id int64) (*models.Store, error) {
	s, ok := r.db.stores[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *fakeStoreRepo) GetStoreBySlug(slug string) (*models.Store, error) {
	for _, s := range r.db.stores {
		if s.Slug == slug {
			c := *s
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeStoreRepo) GetStores() ([]models.Store, error) {
	out := make([]models.Store, 0, len(r.db.stores))
	for _, s := range r.db.stores {
		out = append(out, *s)
	}
	return out, nil
}

func (r *fakeStoreRepo) UpdateStore(_ repositories.SQLExecutor, store *models.Store) error {
	if _, ok := r.db.stores[store.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.db.addStore(*store)
	return nil
}

func (r *fakeStoreRepo) LockStore(_ repositories.SQLExecutor, id int64) error {
	if _, ok := r.db.stores[id]; !ok {
		return repositories.ErrNotFound
	}
	r.lockCalls++
	return nil
}

// --- catalog repository fake ---

type fakeCatalogRepo struct {
	db *fakeDB
}

func (r *fakeCatalogRepo) CreateCategory(_ repositories.SQLExecutor, category *models.Category) (int64, error) {
	return category.ID, nil
}

func (r *fakeCatalogRepo) GetCategoryByID(int64) (*models.Category, error) {
	return nil, repositories.ErrNotFound
}

func (r *fakeCatalogRepo) GetCategoriesByStore(int64, bool) ([]models.Category, error) {
	return nil, nil
}

func (r *fakeCatalogRepo) UpdateCategory(_ repositories.SQLExecutor, _ *models.Category) error {
	return nil
}

func (r *fakeCatalogRepo) DeleteCategory(_ repositories.SQLExecutor, _ int64) error {
	return nil
}

func (r *fakeCatalogRepo) CreateProduct(_ repositories.SQLExecutor, product *models.Product) (int64, error) {
	r.db.addProduct(*product)
	return product.ID, nil
}

func (r *fakeCatalogRepo) GetProductByID(_ repositories.SQLExecutor, id int64) (*models.Product, error) {
	p, ok := r.db.products[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakeCatalogRepo) GetProductsByStore(storeID int64, _ *string, activeOnly bool) ([]models.Product, error) {
	var out []models.Product
	for _, p := range r.db.products {
		if p.StoreID != storeID {
			continue
		}
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *fakeCatalogRepo) UpdateProduct(_ repositories.SQLExecutor, product *models.Product) error {
	if _, ok := r.db.products[product.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.db.addProduct(*product)
	return nil
}

func (r *fakeCatalogRepo) ReserveStock(_ repositories.SQLExecutor, productID int64, quantity int) (int, error) {
	p, ok := r.db.products[productID]
	if !ok || !p.IsActive || p.Stock < quantity {
		return 0, repositories.ErrStockConflict
	}
	p.Stock -= quantity
	return p.Stock, nil
}

func (r *fakeCatalogRepo) ReleaseStock(_ repositories.SQLExecutor, productID int64, quantity int) (int, error) {
	p, ok := r.db.products[productID]
	if !ok {
		return 0, repositories.ErrNotFound
	}
	p.Stock += quantity
	return p.Stock, nil
}

func (r *fakeCatalogRepo) ReleaseStockBatch(ex repositories.SQLExecutor, quantities map[int64]int) error {
	for productID, quantity := range quantities {
		if _, err := r.ReleaseStock(ex, productID, quantity); err != nil && err != repositories.ErrNotFound {
			return err
		}
	}
	return nil
}

func (r *fakeCatalogRepo) CreateStockMovement(_ repositories.SQLExecutor, movement *models.StockMovement) (int64, error) {
	r.db.nextMovementID++
	movement.ID = r.db.nextMovementID
	r.db.movements = append(r.db.movements, *movement)
	return movement.ID, nil
}

// --- order repository fake ---

type fakeOrderRepo struct {
	db *fakeDB
}

func (r *fakeOrderRepo) CreateOrder(_ repositories.SQLExecutor, order *models.Order) (int64, error) {
	order.ID = r.db.nextOrderID
	r.db.nextOrderID++
	r.db.orders[order.ID] = cloneOrder(order)
	return order.ID, nil
}

func (r *fakeOrderRepo) GetOrderByID(_ repositories.SQLExecutor, orderID int64) (*models.Order, error) {
	o, ok := r.db.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *fakeOrderRepo) GetOrderForUpdate(ex repositories.SQLExecutor, orderID int64) (*models.Order, error) {
	return r.GetOrderByID(ex, orderID)
}

func (r *fakeOrderRepo) GetOrders(filters models.OrderFilters) ([]models.Order, int, error) {
	var out []models.Order
	for _, o := range r.db.orders {
		if filters.StoreID != nil && o.StoreID != *filters.StoreID {
			continue
		}
		if filters.Status != nil && o.Status != *filters.Status {
			continue
		}
		if filters.Since != nil && o.CreatedAt.Before(*filters.Since) {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, total, nil
}

func (r *fakeOrderRepo) GetOrdersByStatusForUpdate(_ repositories.SQLExecutor, storeID int64, statuses []string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range r.db.orders {
		if o.StoreID == storeID && slices.Contains(statuses, o.Status) {
			out = append(out, *cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeOrderRepo) UpdateOrderStatus(_ repositories.SQLExecutor, orderID int64, newStatus string, completedAt *time.Time) error {
	o, ok := r.db.orders[orderID]
	if !ok {
		return repositories.ErrNotFound
	}
	o.Status = newStatus
	if completedAt != nil && o.CompletedAt == nil {
		o.CompletedAt = completedAt
	}
	return nil
}

func (r *fakeOrderRepo) UpdateOrderStatusBulk(_ repositories.SQLExecutor, orderIDs []int64, newStatus string) (int64, error) {
	var n int64
	for _, id := range orderIDs {
		if o, ok := r.db.orders[id]; ok {
			o.Status = newStatus
			n++
		}
	}
	return n, nil
}

func (r *fakeOrderRepo) UpdateOrderItems(_ repositories.SQLExecutor, orderID int64, items []models.LineItem, subtotal, total int64) error {
	o, ok := r.db.orders[orderID]
	if !ok {
		return repositories.ErrNotFound
	}
	o.Items = slices.Clone(items)
	o.Subtotal = subtotal
	o.Total = total
	return nil
}

func (r *fakeOrderRepo) SetGatewayTransaction(_ repositories.SQLExecutor, orderID int64, transactionID string) error {
	o, ok := r.db.orders[orderID]
	if !ok {
		return repositories.ErrNotFound
	}
	o.GatewayTransactionID = &transactionID
	return nil
}

func (r *fakeOrderRepo) SetGatewayRefund(_ repositories.SQLExecutor, orderID int64, refundTransactionID string) error {
	o, ok := r.db.orders[orderID]
	if !ok {
		return repositories.ErrNotFound
	}
	o.GatewayRefunded = true
	o.GatewayRefundTransactionID = &refundTransactionID
	return nil
}

func (r *fakeOrderRepo) MaxDailySerial(_ repositories.SQLExecutor, storeID int64, since time.Time) (int, error) {
	max := 0
	for _, o := range r.db.orders {
		if o.StoreID == storeID && !o.CreatedAt.Before(since) && o.DailySerial > max {
			max = o.DailySerial
		}
	}
	return max, nil
}

// --- gateway fake ---

type fakeGateway struct {
	requestResult *gateway.PaymentRequest
	requestErr    error
	confirmErr    error
	refundTxID    string
	refundErr     error

	requestCalls int
	confirmCalls int
	refundCalls  int
}

func (g *fakeGateway) RequestPayment(_ context.Context, _ *models.Order) (*gateway.PaymentRequest, error) {
	g.requestCalls++
	if g.requestErr != nil {
		return nil, g.requestErr
	}
	if g.requestResult != nil {
		return g.requestResult, nil
	}
	return &gateway.PaymentRequest{TransactionID: "tx-test", PaymentURL: "https://pay.example.com/tx-test"}, nil
}

func (g *fakeGateway) ConfirmPayment(_ context.Context, _ string, _ int64) error {
	g.confirmCalls++
	return g.confirmErr
}

func (g *fakeGateway) RefundPayment(_ context.Context, _ string) (string, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return "", g.refundErr
	}
	if g.refundTxID == "" {
		return "refund-test", nil
	}
	return g.refundTxID, nil
}

// fixture bundles everything a service test needs.
type fixture struct {
	db          *fakeDB
	storeRepo   *fakeStoreRepo
	catalogRepo *fakeCatalogRepo
	orderRepo   *fakeOrderRepo
	tx          *fakeTxRunner
	gw          *fakeGateway
}

func newFixture() *fixture {
	db := newFakeDB()
	return &fixture{
		db:          db,
		storeRepo:   &fakeStoreRepo{db: db},
		catalogRepo: &fakeCatalogRepo{db: db},
		orderRepo:   &fakeOrderRepo{db: db},
		tx:          &fakeTxRunner{db: db},
		gw:          &fakeGateway{},
	}
}

func (f *fixture) orderService() OrderService {
	return NewOrderService(f.storeRepo, f.catalogRepo, f.orderRepo, f.tx, f.gw, f.paymentService())
}

func (f *fixture) paymentService() PaymentService {
	return NewPaymentService(f.orderRepo, f.catalogRepo, f.tx, f.gw)
}

func (f *fixture) reportService() ReportService {
	return NewReportService(f.storeRepo, f.catalogRepo, f.orderRepo, f.tx)
}

func (f *fixture) seedStore() *models.Store {
	return f.db.addStore(models.Store{
		ID: 1, Slug: "night-market", Name: "夜市雞排", IsActive: true,
		PaymentEnabled: true, Timezone: "Asia/Taipei",
	})
}

func (f *fixture) seedProduct(id int64, name string, price int64, stock int) *models.Product {
	return f.db.addProduct(models.Product{
		ID: id, StoreID: 1, Name: name, Price: price, Stock: stock, IsActive: true,
	})
}

func (f *fixture) movementsFor(reason string) []models.StockMovement {
	var out []models.StockMovement
	for _, m := range f.db.movements {
		if m.Reason == reason {
			out = append(out, m)
		}
	}
	return out
}
