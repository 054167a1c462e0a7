package session

import (
	"context"

	"cartsync/internal/domain"
)

// Provider supplies the authenticated user's id. Operations that never
// touch the network do not consult it.
type Provider interface {
	UserID(ctx context.Context) (int64, error)
}

type static struct {
	id int64
}

// Static returns a Provider bound to a fixed user id, for single-user
// embedded deployments and tests.
func Static(id int64) Provider {
	return static{id: id}
}

func (s static) UserID(context.Context) (int64, error) {
	return s.id, nil
}

type ctxKey struct{}

// WithUserID stores a user id on the context, typically from an HTTP
// middleware.
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

type fromContext struct{}

// FromContext returns a Provider that reads the user id placed on the
// request context by WithUserID. It fails with domain.ErrNoSession when
// no id is present.
func FromContext() Provider {
	return fromContext{}
}

func (fromContext) UserID(ctx context.Context) (int64, error) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	if !ok {
		return 0, domain.ErrNoSession
	}
	return id, nil
}
