package presenter

import (
	"context"
	"sync"

	"cartsync/internal/domain"
)

// State is the presentation-ready view of the cart. Cents fields are the
// authoritative amounts; the float mirrors are major units for display and
// exist only at this boundary.
type State struct {
	Items         []domain.CartLineItem `json:"items"`
	SubtotalCents int64                 `json:"subtotalCents"`
	ShippingCents int64                 `json:"shippingCents"`
	TotalCents    int64                 `json:"totalCents"`
	Subtotal      float64               `json:"subtotal"`
	Shipping      float64               `json:"shipping"`
	Total         float64               `json:"total"`
}

type feed interface {
	Subscribe(ctx context.Context, fn func([]domain.CartLineItem)) func()
	GetAll(ctx context.Context) ([]domain.CartLineItem, error)
}

// Projector derives State from the live local store, or from a pinned
// single-item snapshot during a buy-now checkout. While pinned, live store
// notifications are gated out; unpinning re-converges with the store.
type Projector struct {
	flatShippingCents int64
	store             feed

	mu       sync.Mutex
	pinned   bool
	state    State
	onChange func(State)
	cancel   func()
}

// New builds a Projector subscribed to the store feed. flatShippingCents
// is charged whenever the projected cart is non-empty.
func New(ctx context.Context, store feed, flatShippingCents int64) *Projector {
	p := &Projector{flatShippingCents: flatShippingCents, store: store}
	p.cancel = store.Subscribe(ctx, p.onStoreChange)
	return p
}

// Close detaches the projector from the store feed.
func (p *Projector) Close() {
	if p.cancel != nil {
		p.cancel()
	}
}

// OnChange registers a single callback invoked after every recomputation.
func (p *Projector) OnChange(fn func(State)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// Current returns the latest projected state.
func (p *Projector) Current() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Pin switches the projection to a synthetic single-item snapshot without
// touching the local store. Live store updates are ignored until Unpin.
func (p *Projector) Pin(item domain.CartLineItem) {
	p.mu.Lock()
	p.pinned = true
	p.state = p.project([]domain.CartLineItem{item})
	fn := p.onChange
	state := p.state
	p.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

// Unpin leaves temporary checkout mode. With a nil snapshot the state is
// recomputed from the live store; a non-nil snapshot is projected as
// given, letting callers restore a specific local view immediately.
func (p *Projector) Unpin(ctx context.Context, snapshot []domain.CartLineItem) error {
	items := snapshot
	if items == nil {
		live, err := p.store.GetAll(ctx)
		if err != nil {
			return err
		}
		items = live
	}

	p.mu.Lock()
	p.pinned = false
	p.state = p.project(items)
	fn := p.onChange
	state := p.state
	p.mu.Unlock()

	if fn != nil {
		fn(state)
	}
	return nil
}

func (p *Projector) onStoreChange(items []domain.CartLineItem) {
	p.mu.Lock()
	if p.pinned {
		p.mu.Unlock()
		return
	}
	p.state = p.project(items)
	fn := p.onChange
	state := p.state
	p.mu.Unlock()

	if fn != nil {
		fn(state)
	}
}

func (p *Projector) project(items []domain.CartLineItem) State {
	agg := domain.Aggregate(items)

	var shipping int64
	if len(items) > 0 {
		shipping = p.flatShippingCents
	}

	return State{
		Items:         items,
		SubtotalCents: agg.SubtotalCents,
		ShippingCents: shipping,
		TotalCents:    agg.SubtotalCents + shipping,
		Subtotal:      domain.CentsToMajor(agg.SubtotalCents),
		Shipping:      domain.CentsToMajor(shipping),
		Total:         domain.CentsToMajor(agg.SubtotalCents + shipping),
	}
}
