package cartitem

import (
	"context"
	"sync"

	"cartsync/internal/domain"
	"github.com/sirupsen/logrus"
)

// Feed decorates a Repository with change notifications. Every successful
// mutation re-reads the table and pushes the full list to all subscribers.
// New subscribers receive the current snapshot immediately, so an observer
// attached after writes still sees the latest state.
type Feed struct {
	Repository

	logger *logrus.Logger

	mu     sync.Mutex
	subs   map[int64]func([]domain.CartLineItem)
	nextID int64
}

// NewFeed wraps repo with publish-on-mutation behavior.
func NewFeed(repo Repository, logger *logrus.Logger) *Feed {
	return &Feed{
		Repository: repo,
		logger:     logger,
		subs:       make(map[int64]func([]domain.CartLineItem)),
	}
}

// Subscribe registers fn and delivers the current list to it before
// returning. The returned cancel function removes the subscription.
func (f *Feed) Subscribe(ctx context.Context, fn func([]domain.CartLineItem)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	items, err := f.Repository.GetAll(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("cart feed: replay-on-subscribe read failed")
	} else {
		fn(items)
	}

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

func (f *Feed) publish(ctx context.Context) {
	items, err := f.Repository.GetAll(ctx)
	if err != nil {
		f.logger.WithError(err).Warn("cart feed: post-mutation read failed")
		return
	}

	f.mu.Lock()
	fns := make([]func([]domain.CartLineItem), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(items)
	}
}

func (f *Feed) InsertIfAbsent(ctx context.Context, item domain.CartLineItem) (bool, error) {
	inserted, err := f.Repository.InsertIfAbsent(ctx, item)
	if err == nil && inserted {
		f.publish(ctx)
	}
	return inserted, err
}

func (f *Feed) Update(ctx context.Context, item domain.CartLineItem) error {
	if err := f.Repository.Update(ctx, item); err != nil {
		return err
	}
	f.publish(ctx)
	return nil
}

func (f *Feed) Delete(ctx context.Context, productID int64) error {
	if err := f.Repository.Delete(ctx, productID); err != nil {
		return err
	}
	f.publish(ctx)
	return nil
}

func (f *Feed) UpsertAll(ctx context.Context, items []domain.CartLineItem) error {
	if err := f.Repository.UpsertAll(ctx, items); err != nil {
		return err
	}
	f.publish(ctx)
	return nil
}

func (f *Feed) ReplaceAll(ctx context.Context, items []domain.CartLineItem) error {
	if err := f.Repository.ReplaceAll(ctx, items); err != nil {
		return err
	}
	f.publish(ctx)
	return nil
}

func (f *Feed) Clear(ctx context.Context) error {
	if err := f.Repository.Clear(ctx); err != nil {
		return err
	}
	f.publish(ctx)
	return nil
}
