package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/models"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/payments"
	"github.com/mrmartin1998/e-commerce-platform-sub000/internal/store"
)

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*payments.Session
	calls    int
}

func (f *fakeSessions) RetrieveSession(ctx context.Context, sessionID string) (*payments.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, payments.ErrSessionNotFound
	}
	return sess, nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: map[primitive.ObjectID]*models.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakeProducts) DecrementStock(ctx context.Context, id primitive.ObjectID, quantity int) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok || p.Stock < quantity {
		return nil, store.ErrInsufficientStock
	}
	p.Stock -= quantity
	copied := *p
	return &copied, nil
}

func (f *fakeProducts) SetStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	return nil
}

func (f *fakeProducts) snapshot() map[primitive.ObjectID]models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]models.Product{}
	for id, p := range f.products {
		out[id] = *p
	}
	return out
}

func (f *fakeProducts) restore(snap map[primitive.ObjectID]models.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products = map[primitive.ObjectID]*models.Product{}
	for id := range snap {
		p := snap[id]
		f.products[id] = &p
	}
}

func (f *fakeProducts) stock(id primitive.ObjectID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

func (f *fakeProducts) status(id primitive.ObjectID) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Status
}

type fakeOrders struct {
	mu     sync.Mutex
	orders []*models.Order
}

func (f *fakeOrders) Insert(ctx context.Context, order *models.Order) (primitive.ObjectID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.orders {
		if existing.Payment.SessionID == order.Payment.SessionID {
			return primitive.NilObjectID, store.ErrDuplicateSession
		}
	}
	copied := *order
	copied.ID = primitive.NewObjectID()
	f.orders = append(f.orders, &copied)
	return copied.ID, nil
}

func (f *fakeOrders) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.orders {
		if order.Payment.SessionID == sessionID {
			copied := *order
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeOrders) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

// fakeTx snapshots product state and rolls it back when fn fails, mirroring
// the all-or-nothing contract of the real transaction runner.
type fakeTx struct {
	mu       sync.Mutex
	products *fakeProducts
}

func (f *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.products.snapshot()
	if err := fn(ctx); err != nil {
		f.products.restore(snap)
		return err
	}
	return nil
}

func testSession(id string, productIDs []primitive.ObjectID, lines []payments.LineItem, shipping int64) *payments.Session {
	ids := "["
	for i, pid := range productIDs {
		if i > 0 {
			ids += ","
		}
		ids += `"` + pid.Hex() + `"`
	}
	ids += "]"

	var subtotal int64
	allLines := make([]payments.LineItem, 0, len(lines)+1)
	allLines = append(allLines, lines...)
	for _, line := range lines {
		subtotal += line.AmountTotal
	}
	if shipping > 0 {
		allLines = append(allLines, payments.LineItem{
			Description: payments.ShippingLineDescription,
			Quantity:    1,
			AmountTotal: shipping,
		})
		subtotal += shipping
	}

	return &payments.Session{
		ID:              id,
		PaymentIntentID: "pi_" + id,
		PaymentStatus:   payments.SessionPaid,
		AmountSubtotal:  subtotal,
		AmountTotal:     subtotal,
		LineItems:       allLines,
		Metadata: map[string]string{
			payments.MetadataProductIDs:      ids,
			payments.MetadataShippingAddress: `{"line1":"1 Main St","city":"Valencia","postalCode":"46001","country":"ES"}`,
		},
	}
}

func newTestFinalizer(sessions *fakeSessions, products *fakeProducts, orders *fakeOrders) *Finalizer {
	f := NewFinalizer(sessions, products, orders, &fakeTx{products: products})
	f.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return f
}

func TestFinalizeCreatesOrderAndDecrementsStock(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 10, Status: models.ProductStatusPublished}
	pear := &models.Product{ID: primitive.NewObjectID(), Name: "Pear", Stock: 5, Status: models.ProductStatusPublished}
	products := newFakeProducts(apple, pear)
	orders := &fakeOrders{}
	sessions := &fakeSessions{sessions: map[string]*payments.Session{
		"cs_1": testSession("cs_1",
			[]primitive.ObjectID{apple.ID, pear.ID},
			[]payments.LineItem{
				{Description: "Apple", Quantity: 3, AmountTotal: 600},
				{Description: "Pear", Quantity: 2, AmountTotal: 500},
			},
			1000,
		),
	}}

	finalizer := newTestFinalizer(sessions, products, orders)
	userID := primitive.NewObjectID()

	order, err := finalizer.Finalize(context.Background(), userID, "cs_1")
	if err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	if order.ID.IsZero() {
		t.Fatal("expected order to be assigned an id")
	}
	if order.UserID != userID {
		t.Fatalf("expected order userId %s, got %s", userID.Hex(), order.UserID.Hex())
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 order items, got %d", len(order.Items))
	}
	if order.Items[0].ProductID != apple.ID || order.Items[0].Price != 200 || order.Items[0].Quantity != 3 {
		t.Fatalf("unexpected first item: %+v", order.Items[0])
	}
	if order.Items[1].ProductID != pear.ID || order.Items[1].Price != 250 || order.Items[1].Quantity != 2 {
		t.Fatalf("unexpected second item: %+v", order.Items[1])
	}

	if order.Shipping != 1000 {
		t.Fatalf("expected shipping 1000, got %d", order.Shipping)
	}
	if order.Subtotal != 1100 {
		t.Fatalf("expected subtotal 1100, got %d", order.Subtotal)
	}
	if order.Total != order.Subtotal+order.Tax+order.Shipping {
		t.Fatalf("amounts do not add up: subtotal=%d tax=%d shipping=%d total=%d",
			order.Subtotal, order.Tax, order.Shipping, order.Total)
	}

	if order.PaymentStatus != models.PaymentStatusPaid {
		t.Fatalf("expected paymentStatus paid, got %s", order.PaymentStatus)
	}
	if order.PaidAt == nil {
		t.Fatal("expected paidAt to be set on a paid session")
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("expected fulfilment status pending, got %s", order.Status)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Status != models.OrderStatusPending {
		t.Fatalf("expected seeded status history, got %+v", order.StatusHistory)
	}
	if order.ShippingAddress.City != "Valencia" {
		t.Fatalf("expected address snapshot, got %+v", order.ShippingAddress)
	}
	if order.Payment.SessionID != "cs_1" || order.Payment.PaymentIntentID != "pi_cs_1" {
		t.Fatalf("unexpected payment linkage: %+v", order.Payment)
	}

	if got := products.stock(apple.ID); got != 7 {
		t.Fatalf("expected apple stock 7, got %d", got)
	}
	if got := products.stock(pear.ID); got != 3 {
		t.Fatalf("expected pear stock 3, got %d", got)
	}
}

func TestFinalizeMarksProductOutOfStock(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 2, Status: models.ProductStatusPublished}
	products := newFakeProducts(apple)
	orders := &fakeOrders{}
	sessions := &fakeSessions{sessions: map[string]*payments.Session{
		"cs_1": testSession("cs_1",
			[]primitive.ObjectID{apple.ID},
			[]payments.LineItem{{Description: "Apple", Quantity: 2, AmountTotal: 400}},
			0,
		),
	}}

	finalizer := newTestFinalizer(sessions, products, orders)

	if _, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_1"); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}

	if got := products.stock(apple.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
	if got := products.status(apple.ID); got != models.ProductStatusOutOfStock {
		t.Fatalf("expected status outOfStock, got %s", got)
	}
}

func TestFinalizeInsufficientStockRollsBackEverything(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 10, Status: models.ProductStatusPublished}
	pear := &models.Product{ID: primitive.NewObjectID(), Name: "Pear", Stock: 1, Status: models.ProductStatusPublished}
	products := newFakeProducts(apple, pear)
	orders := &fakeOrders{}
	sessions := &fakeSessions{sessions: map[string]*payments.Session{
		"cs_1": testSession("cs_1",
			[]primitive.ObjectID{apple.ID, pear.ID},
			[]payments.LineItem{
				{Description: "Apple", Quantity: 3, AmountTotal: 600},
				{Description: "Pear", Quantity: 2, AmountTotal: 500},
			},
			0,
		),
	}}

	finalizer := newTestFinalizer(sessions, products, orders)

	_, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_1")

	var insufficient InsufficientStockError
	if !errors.As(err, &insufficient) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insufficient.ProductID != pear.ID || insufficient.Available != 1 || insufficient.Requested != 2 {
		t.Fatalf("unexpected error detail: %+v", insufficient)
	}

	// the apple decrement must not survive the failed transaction
	if got := products.stock(apple.ID); got != 10 {
		t.Fatalf("expected apple stock unchanged at 10, got %d", got)
	}
	if orders.count() != 0 {
		t.Fatalf("expected no order, got %d", orders.count())
	}
}

func TestFinalizeProductMissing(t *testing.T) {
	missingID := primitive.NewObjectID()
	products := newFakeProducts()
	orders := &fakeOrders{}
	sessions := &fakeSessions{sessions: map[string]*payments.Session{
		"cs_1": testSession("cs_1",
			[]primitive.ObjectID{missingID},
			[]payments.LineItem{{Description: "Ghost", Quantity: 1, AmountTotal: 100}},
			0,
		),
	}}

	finalizer := newTestFinalizer(sessions, products, orders)

	_, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_1")

	var missing ProductMissingError
	if !errors.As(err, &missing) {
		t.Fatalf("expected ProductMissingError, got %v", err)
	}
	if missing.ProductID != missingID {
		t.Fatalf("expected product id %s, got %s", missingID.Hex(), missing.ProductID.Hex())
	}
	if orders.count() != 0 {
		t.Fatalf("expected no order, got %d", orders.count())
	}
}

func TestFinalizeEmptySessionID(t *testing.T) {
	finalizer := newTestFinalizer(&fakeSessions{}, newFakeProducts(), &fakeOrders{})

	_, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "")

	var malformed MalformedSessionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSessionError, got %v", err)
	}
}

func TestFinalizeUnknownSession(t *testing.T) {
	finalizer := newTestFinalizer(
		&fakeSessions{sessions: map[string]*payments.Session{}},
		newFakeProducts(),
		&fakeOrders{},
	)

	_, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_unknown")
	if !errors.Is(err, payments.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestFinalizeMetadataCountMismatch(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 10, Status: models.ProductStatusPublished}
	sess := testSession("cs_1",
		[]primitive.ObjectID{apple.ID},
		[]payments.LineItem{
			{Description: "Apple", Quantity: 1, AmountTotal: 200},
			{Description: "Pear", Quantity: 1, AmountTotal: 250},
		},
		0,
	)

	finalizer := newTestFinalizer(
		&fakeSessions{sessions: map[string]*payments.Session{"cs_1": sess}},
		newFakeProducts(apple),
		&fakeOrders{},
	)

	_, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_1")

	var malformed MalformedSessionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSessionError, got %v", err)
	}
}

func TestFinalizeMissingProductIDsMetadata(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 10, Status: models.ProductStatusPublished}
	sess := testSession("cs_1",
		[]primitive.ObjectID{apple.ID},
		[]payments.LineItem{{Description: "Apple", Quantity: 1, AmountTotal: 200}},
		0,
	)
	delete(sess.Metadata, payments.MetadataProductIDs)

	finalizer := newTestFinalizer(
		&fakeSessions{sessions: map[string]*payments.Session{"cs_1": sess}},
		newFakeProducts(apple),
		&fakeOrders{},
	)

	_, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_1")

	var malformed MalformedSessionError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedSessionError, got %v", err)
	}
}

func TestFinalizeReplayReturnsExistingOrder(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 7, Status: models.ProductStatusPublished}
	products := newFakeProducts(apple)
	orders := &fakeOrders{}
	sessions := &fakeSessions{sessions: map[string]*payments.Session{
		"cs_1": testSession("cs_1",
			[]primitive.ObjectID{apple.ID},
			[]payments.LineItem{{Description: "Apple", Quantity: 3, AmountTotal: 600}},
			0,
		),
	}}

	finalizer := newTestFinalizer(sessions, products, orders)
	userID := primitive.NewObjectID()

	first, err := finalizer.Finalize(context.Background(), userID, "cs_1")
	if err != nil {
		t.Fatalf("first Finalize returned error: %v", err)
	}

	second, err := finalizer.Finalize(context.Background(), userID, "cs_1")
	if err != nil {
		t.Fatalf("second Finalize returned error: %v", err)
	}

	if first.ID != second.ID {
		t.Fatalf("expected replay to return the same order, got %s and %s", first.ID.Hex(), second.ID.Hex())
	}
	if orders.count() != 1 {
		t.Fatalf("expected exactly one order, got %d", orders.count())
	}
	if got := products.stock(apple.ID); got != 4 {
		t.Fatalf("expected stock decremented exactly once to 4, got %d", got)
	}
	if sessions.calls != 1 {
		t.Fatalf("expected the replay to skip the provider, got %d calls", sessions.calls)
	}
}

func TestFinalizeConcurrentSameSession(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 5, Status: models.ProductStatusPublished}
	products := newFakeProducts(apple)
	orders := &fakeOrders{}
	sessions := &fakeSessions{sessions: map[string]*payments.Session{
		"cs_1": testSession("cs_1",
			[]primitive.ObjectID{apple.ID},
			[]payments.LineItem{{Description: "Apple", Quantity: 2, AmountTotal: 400}},
			0,
		),
	}}

	finalizer := newTestFinalizer(sessions, products, orders)
	userID := primitive.NewObjectID()

	const callers = 8
	results := make([]*models.Order, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = finalizer.Finalize(context.Background(), userID, "cs_1")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d returned error: %v", i, errs[i])
		}
		if results[i].ID != results[0].ID {
			t.Fatalf("caller %d got a different order", i)
		}
	}
	if orders.count() != 1 {
		t.Fatalf("expected exactly one order, got %d", orders.count())
	}
	if got := products.stock(apple.ID); got != 3 {
		t.Fatalf("expected stock decremented exactly once to 3, got %d", got)
	}
}

func TestFinalizeConcurrentSessionsNeverOversell(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 3, Status: models.ProductStatusPublished}
	products := newFakeProducts(apple)
	orders := &fakeOrders{}

	// two buyers each want 2 of the 3 in stock
	sessionMap := map[string]*payments.Session{}
	for _, id := range []string{"cs_a", "cs_b"} {
		sessionMap[id] = testSession(id,
			[]primitive.ObjectID{apple.ID},
			[]payments.LineItem{{Description: "Apple", Quantity: 2, AmountTotal: 400}},
			0,
		)
	}
	sessions := &fakeSessions{sessions: sessionMap}

	finalizer := newTestFinalizer(sessions, products, orders)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{"cs_a", "cs_b"} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = finalizer.Finalize(context.Background(), primitive.NewObjectID(), id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficient InsufficientStockError
		if !errors.As(err, &insufficient) {
			t.Fatalf("expected InsufficientStockError for the loser, got %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one buyer to succeed, got %d", succeeded)
	}
	if got := products.stock(apple.ID); got != 1 {
		t.Fatalf("expected stock 1 after one sale, got %d", got)
	}
	if orders.count() != 1 {
		t.Fatalf("expected exactly one order, got %d", orders.count())
	}
}

func TestFinalizeUnpaidSessionStaysPending(t *testing.T) {
	apple := &models.Product{ID: primitive.NewObjectID(), Name: "Apple", Stock: 5, Status: models.ProductStatusPublished}
	sess := testSession("cs_1",
		[]primitive.ObjectID{apple.ID},
		[]payments.LineItem{{Description: "Apple", Quantity: 1, AmountTotal: 200}},
		0,
	)
	sess.PaymentStatus = payments.SessionUnpaid

	finalizer := newTestFinalizer(
		&fakeSessions{sessions: map[string]*payments.Session{"cs_1": sess}},
		newFakeProducts(apple),
		&fakeOrders{},
	)

	order, err := finalizer.Finalize(context.Background(), primitive.NewObjectID(), "cs_1")
	if err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		t.Fatalf("expected paymentStatus pending, got %s", order.PaymentStatus)
	}
	if order.PaidAt != nil {
		t.Fatal("expected paidAt to be unset on an unpaid session")
	}
}
