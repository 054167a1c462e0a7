package cartsync

import (
	"context"
	"errors"
	"io"
	"testing"

	"cartsync/internal/domain"
	"cartsync/internal/remote"
	"cartsync/internal/repository/cartitem"
	"cartsync/internal/session"
	"github.com/sirupsen/logrus"
)

type stubRemote struct {
	fetchCart  *remote.Cart
	fetchErr   error
	createCart *remote.Cart
	createErr  error
	replaceCart *remote.Cart
	replaceErr  error
	dropErr     error

	fetchCalls   int
	createCalls  int
	replaceCalls int
	dropCalls    int

	lastCreateUserID int64
	lastCreateItems  []remote.LineItem
	lastReplaceID    int64
	lastReplaceItems []remote.LineItem
	lastDropID       int64
}

func (r *stubRemote) Fetch(_ context.Context, _ int64) (*remote.Cart, error) {
	r.fetchCalls++
	return r.fetchCart, r.fetchErr
}

func (r *stubRemote) Create(_ context.Context, userID int64, items []remote.LineItem) (*remote.Cart, error) {
	r.createCalls++
	r.lastCreateUserID = userID
	r.lastCreateItems = items
	return r.createCart, r.createErr
}

func (r *stubRemote) Replace(_ context.Context, cartID int64, items []remote.LineItem) (*remote.Cart, error) {
	r.replaceCalls++
	r.lastReplaceID = cartID
	r.lastReplaceItems = items
	return r.replaceCart, r.replaceErr
}

func (r *stubRemote) Drop(_ context.Context, cartID int64) error {
	r.dropCalls++
	r.lastDropID = cartID
	return r.dropErr
}

func failingRemote() *stubRemote {
	boom := errors.New("network down")
	return &stubRemote{fetchErr: boom, createErr: boom, replaceErr: boom, dropErr: boom}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newService(t *testing.T, store cartitem.Repository, client *stubRemote, opts Options) *Service {
	t.Helper()
	return New(store, client, session.Static(42), quietLogger(), opts)
}

func cartID(id int64) *int64 { return &id }

func mustAdd(t *testing.T, svc *Service, in AddInput) {
	t.Helper()
	if _, err := svc.Add(context.Background(), in); err != nil {
		t.Fatalf("Add(%+v): %v", in, err)
	}
}

func TestAddOfflineResilience(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	svc := newService(t, store, failingRemote(), Options{})

	item, err := svc.Add(ctx, AddInput{ProductID: 7, Name: "X", UnitPriceCents: 10000, Quantity: 2})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if item.Quantity != 2 || item.Synced {
		t.Fatalf("expected local qty=2 synced=false, got %+v", item)
	}

	found, err := store.FindByProduct(ctx, 7)
	if err != nil {
		t.Fatalf("FindByProduct: %v", err)
	}
	if found.Quantity != 2 || found.Synced {
		t.Fatalf("offline add must persist locally, got %+v", found)
	}
}

func TestAddAccumulatesPerProduct(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	svc := newService(t, store, failingRemote(), Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 2})
	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 3})
	mustAdd(t, svc, AddInput{ProductID: 8, UnitPriceCents: 50, Quantity: 1})

	items, _ := store.GetAll(ctx)
	if len(items) != 2 {
		t.Fatalf("expected one row per productId, got %+v", items)
	}
	row, _ := store.FindByProduct(ctx, 7)
	if row.Quantity != 5 {
		t.Fatalf("quantity must accumulate, got %d", row.Quantity)
	}
}

func TestAddStickyImage(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	svc := newService(t, store, failingRemote(), Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, ImageURL: "https://img/7.png", UnitPriceCents: 100, Quantity: 1})
	mustAdd(t, svc, AddInput{ProductID: 7, ImageURL: "", UnitPriceCents: 100, Quantity: 1})

	row, _ := store.FindByProduct(ctx, 7)
	if row.ImageURL != "https://img/7.png" {
		t.Fatalf("empty image must not clear the stored one, got %q", row.ImageURL)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	svc := newService(t, cartitem.NewMemory(), failingRemote(), Options{})
	if _, err := svc.Add(context.Background(), AddInput{ProductID: 7, Quantity: 0}); !errors.Is(err, cartitem.ErrNonPositiveQuantity) {
		t.Fatalf("expected quantity error, got %v", err)
	}
}

func TestAddSafetyCheckRejectsForeignCart(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	// Server answers the replace with a cart that lacks the product just
	// added, a stale cart for some other concern.
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: cartID(11)},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 999, Quantity: 4, UnitPriceCents: 777},
		}},
	}
	svc := newService(t, store, client, Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 10000, Quantity: 2})

	items, _ := store.GetAll(ctx)
	if len(items) != 1 || items[0].ProductID != 7 || items[0].Quantity != 2 || items[0].Synced {
		t.Fatalf("bogus remote response must not leak into local storage, got %+v", items)
	}
}

func TestAddVerifiedResponseReconciles(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 7, Quantity: 1, UnitPriceCents: 10000},
		}},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 7, Quantity: 3, UnitPriceCents: 10000},
		}},
	}
	svc := newService(t, store, client, Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, ImageURL: "https://img/7.png", UnitPriceCents: 10000, Quantity: 2})

	if len(client.lastReplaceItems) != 1 || client.lastReplaceItems[0].Quantity != 3 {
		t.Fatalf("replace must carry merged quantity, got %+v", client.lastReplaceItems)
	}

	row, _ := store.FindByProduct(ctx, 7)
	if !row.Synced || row.Quantity != 3 {
		t.Fatalf("verified response must reconcile local row, got %+v", row)
	}
	if row.ImageURL != "https://img/7.png" {
		t.Fatalf("local image must survive reconcile, got %q", row.ImageURL)
	}
}

func TestAddCreatesCartWhenNoneExists(t *testing.T) {
	store := cartitem.NewMemory()
	client := &stubRemote{
		fetchCart:  &remote.Cart{ID: nil},
		createCart: &remote.Cart{ID: cartID(5), Items: []remote.LineItem{{ProductID: 7, Quantity: 2, UnitPriceCents: 100}}},
	}
	svc := newService(t, store, client, Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 2})

	if client.createCalls != 1 || client.lastCreateUserID != 42 {
		t.Fatalf("expected create-cart for user 42, calls=%d", client.createCalls)
	}
	row, _ := store.FindByProduct(context.Background(), 7)
	if !row.Synced {
		t.Fatalf("verified create response must mark row synced, got %+v", row)
	}
}

func TestAddCreateReturningEmptyKeepsLocal(t *testing.T) {
	store := cartitem.NewMemory()
	client := &stubRemote{
		fetchCart:  &remote.Cart{ID: nil},
		createCart: &remote.Cart{ID: cartID(5)},
	}
	svc := newService(t, store, client, Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 2})

	row, _ := store.FindByProduct(context.Background(), 7)
	if row.Synced || row.Quantity != 2 {
		t.Fatalf("empty create response must leave local authoritative, got %+v", row)
	}
}

func TestIncrementLocalFallback(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	svc := newService(t, store, failingRemote(), Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 1})
	if err := svc.Increment(ctx, 7); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	row, _ := store.FindByProduct(ctx, 7)
	if row.Quantity != 2 || row.Synced {
		t.Fatalf("expected local qty=2 synced=false, got %+v", row)
	}
}

func TestIncrementUpsertKeepsUnrelatedRows(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{
		{ProductID: 7, Quantity: 1, UnitPriceCents: 100},
		{ProductID: 99, Quantity: 5, UnitPriceCents: 200},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Server only knows about product 7.
	client := &stubRemote{
		fetchCart:   &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 1, UnitPriceCents: 100}}},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 2, UnitPriceCents: 100}}},
	}
	svc := newService(t, store, client, Options{})

	if err := svc.Increment(ctx, 7); err != nil {
		t.Fatalf("Increment: %v", err)
	}

	items, _ := store.GetAll(ctx)
	if len(items) != 2 {
		t.Fatalf("increment reconcile must not destroy unrelated rows, got %+v", items)
	}
	row, _ := store.FindByProduct(ctx, 7)
	if row.Quantity != 2 || !row.Synced {
		t.Fatalf("expected reconciled qty=2 synced, got %+v", row)
	}
}

func TestDecrementDefaultReplaceIsDestructive(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{
		{ProductID: 7, Quantity: 3, UnitPriceCents: 100},
		{ProductID: 99, Quantity: 5, UnitPriceCents: 200},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := &stubRemote{
		fetchCart:   &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 3, UnitPriceCents: 100}}},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 2, UnitPriceCents: 100}}},
	}
	svc := newService(t, store, client, Options{})

	if err := svc.Decrement(ctx, 7); err != nil {
		t.Fatalf("Decrement: %v", err)
	}

	items, _ := store.GetAll(ctx)
	if len(items) != 1 || items[0].ProductID != 7 || items[0].Quantity != 2 {
		t.Fatalf("default decrement reconcile replaces the whole table, got %+v", items)
	}
}

func TestDecrementUpsertModeKeepsUnrelatedRows(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{
		{ProductID: 7, Quantity: 3, UnitPriceCents: 100},
		{ProductID: 99, Quantity: 5, UnitPriceCents: 200},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := &stubRemote{
		fetchCart:   &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 3, UnitPriceCents: 100}}},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 2, UnitPriceCents: 100}}},
	}
	svc := newService(t, store, client, Options{DecrementReconcile: ReconcileUpsert})

	if err := svc.Decrement(ctx, 7); err != nil {
		t.Fatalf("Decrement: %v", err)
	}

	items, _ := store.GetAll(ctx)
	if len(items) != 2 {
		t.Fatalf("upsert decrement must keep unrelated rows, got %+v", items)
	}
}

func TestDecrementToZeroRemovesRow(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	svc := newService(t, store, failingRemote(), Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 1})
	if err := svc.Decrement(ctx, 7); err != nil {
		t.Fatalf("Decrement: %v", err)
	}

	if _, err := store.FindByProduct(ctx, 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("row reaching zero must be removed, got %v", err)
	}
	items, _ := store.GetAll(ctx)
	if len(items) != 0 {
		t.Fatalf("expected empty cart, got %+v", items)
	}
}

func TestDecrementToZeroVerifiedReconcile(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{
		{ProductID: 7, Quantity: 1, UnitPriceCents: 100},
		{ProductID: 8, Quantity: 2, UnitPriceCents: 50},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 7, Quantity: 1, UnitPriceCents: 100},
			{ProductID: 8, Quantity: 2, UnitPriceCents: 50},
		}},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 8, Quantity: 2, UnitPriceCents: 50},
		}},
	}
	svc := newService(t, store, client, Options{})

	if err := svc.Decrement(ctx, 7); err != nil {
		t.Fatalf("Decrement: %v", err)
	}

	if _, err := store.FindByProduct(ctx, 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("zero-driven removal must delete the row, got %v", err)
	}
	row, _ := store.FindByProduct(ctx, 8)
	if row == nil || row.Quantity != 2 {
		t.Fatalf("surviving row must be reconciled, got %+v", row)
	}
}

func TestDecrementMissingRow(t *testing.T) {
	svc := newService(t, cartitem.NewMemory(), failingRemote(), Options{})
	if err := svc.Decrement(context.Background(), 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveFallsBackToLocalDelete(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	svc := newService(t, store, failingRemote(), Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 2})
	if err := svc.Remove(ctx, 7); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.FindByProduct(ctx, 7); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected row gone, got %v", err)
	}
}

func TestRemoveVerifiedReconcile(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{
		{ProductID: 7, Quantity: 2, UnitPriceCents: 100, ImageURL: "https://img/7.png"},
		{ProductID: 8, Quantity: 1, UnitPriceCents: 50, ImageURL: "https://img/8.png"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 7, Quantity: 2, UnitPriceCents: 100},
			{ProductID: 8, Quantity: 1, UnitPriceCents: 50},
		}},
		replaceCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 8, Quantity: 1, UnitPriceCents: 50},
		}},
	}
	svc := newService(t, store, client, Options{})

	if err := svc.Remove(ctx, 7); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	items, _ := store.GetAll(ctx)
	if len(items) != 1 || items[0].ProductID != 8 {
		t.Fatalf("expected only product 8 left, got %+v", items)
	}
	if items[0].ImageURL != "https://img/8.png" {
		t.Fatalf("local image must survive destructive reconcile, got %q", items[0].ImageURL)
	}
}

func TestClearIsIdempotentAndBestEffort(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{{ProductID: 7, Quantity: 1, UnitPriceCents: 1}}},
		dropErr:   errors.New("boom"),
	}
	svc := newService(t, store, client, Options{})

	mustAdd(t, svc, AddInput{ProductID: 7, UnitPriceCents: 100, Quantity: 1})

	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("first clear: %v", err)
	}
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("second clear: %v", err)
	}
	if client.dropCalls == 0 || client.lastDropID != 11 {
		t.Fatalf("expected best-effort remote delete of cart 11, calls=%d", client.dropCalls)
	}
	items, _ := store.GetAll(ctx)
	if len(items) != 0 {
		t.Fatalf("expected empty store after clear, got %+v", items)
	}
}

func TestPullRemoteFetchFailureSurfacesError(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{{ProductID: 7, Quantity: 2, UnitPriceCents: 100}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	svc := newService(t, store, failingRemote(), Options{})

	if err := svc.PullRemote(ctx); err == nil {
		t.Fatalf("total fetch failure must surface an error")
	}
	items, _ := store.GetAll(ctx)
	if len(items) != 1 {
		t.Fatalf("failed pull must not mutate local state, got %+v", items)
	}
}

func TestPullRemoteEmptyServerPushesLocalUp(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{{ProductID: 7, Quantity: 2, UnitPriceCents: 100}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: nil},
		createErr: errors.New("still down"), // fire-and-forget: must not fail the pull
	}
	svc := newService(t, store, client, Options{})

	if err := svc.PullRemote(ctx); err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
	if client.createCalls != 1 || len(client.lastCreateItems) != 1 || client.lastCreateItems[0].ProductID != 7 {
		t.Fatalf("expected local items pushed up, got calls=%d items=%+v", client.createCalls, client.lastCreateItems)
	}
	items, _ := store.GetAll(ctx)
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("empty remote must not overwrite local data, got %+v", items)
	}
}

func TestPullRemoteBothEmpty(t *testing.T) {
	svc := newService(t, cartitem.NewMemory(), &stubRemote{fetchCart: &remote.Cart{}}, Options{})
	if err := svc.PullRemote(context.Background()); err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
}

func TestPullRemoteReplacesLocalWithStickyImages(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	if err := store.UpsertAll(ctx, []domain.CartLineItem{
		{ProductID: 7, Quantity: 1, UnitPriceCents: 100, ImageURL: "https://img/7.png"},
		{ProductID: 55, Quantity: 9, UnitPriceCents: 1},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	client := &stubRemote{
		fetchCart: &remote.Cart{ID: cartID(11), Items: []remote.LineItem{
			{ProductID: 7, Name: "Sneaker", Quantity: 4, UnitPriceCents: 100},
			{ProductID: 8, Name: "Mug", Quantity: 1, UnitPriceCents: 1299, ImageURL: "https://img/8.png"},
		}},
	}
	svc := newService(t, store, client, Options{})

	if err := svc.PullRemote(ctx); err != nil {
		t.Fatalf("PullRemote: %v", err)
	}

	items, _ := store.GetAll(ctx)
	if len(items) != 2 {
		t.Fatalf("pull must replace the local table, got %+v", items)
	}
	seven, _ := store.FindByProduct(ctx, 7)
	if seven.Quantity != 4 || seven.ImageURL != "https://img/7.png" || !seven.Synced {
		t.Fatalf("server qty must win while local image sticks, got %+v", seven)
	}
	if _, err := store.FindByProduct(ctx, 55); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rows absent from the server view must be gone after pull")
	}
}

func TestOperationsFailFastWithoutSession(t *testing.T) {
	ctx := context.Background()
	store := cartitem.NewMemory()
	client := &stubRemote{}
	svc := New(store, client, session.FromContext(), quietLogger(), Options{})

	if _, err := svc.Add(ctx, AddInput{ProductID: 7, Quantity: 1}); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("Add without session: %v", err)
	}
	if err := svc.PullRemote(ctx); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("PullRemote without session: %v", err)
	}
	items, _ := store.GetAll(ctx)
	if len(items) != 0 {
		t.Fatalf("failed session check must not mutate local state, got %+v", items)
	}
	if client.fetchCalls != 0 {
		t.Fatalf("failed session check must not reach the network")
	}

	// Pure local reads need no session.
	if _, err := svc.LocalItems(ctx); err != nil {
		t.Fatalf("LocalItems: %v", err)
	}

	// With an id on the context the same service works.
	authed := session.WithUserID(ctx, 42)
	if _, err := svc.Add(authed, AddInput{ProductID: 7, Quantity: 1, UnitPriceCents: 1}); err != nil {
		t.Fatalf("Add with context session: %v", err)
	}
}

func TestParseReconcileMode(t *testing.T) {
	cases := []struct {
		in      string
		want    ReconcileMode
		wantErr bool
	}{
		{"", ReconcileReplace, false},
		{"replace", ReconcileReplace, false},
		{"UPSERT", ReconcileUpsert, false},
		{"sideways", "", true},
	}
	for _, tc := range cases {
		got, err := ParseReconcileMode(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseReconcileMode(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseReconcileMode(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}
