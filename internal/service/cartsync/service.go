package cartsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cartsync/internal/domain"
	"cartsync/internal/remote"
	"cartsync/internal/repository/cartitem"
	"cartsync/internal/session"
	"github.com/sirupsen/logrus"
)

// ReconcileMode selects how a verified remote response is written back
// into the local store.
type ReconcileMode string

const (
	// ReconcileReplace swaps the whole local table for the server's view
	// (clear + insert in one transaction).
	ReconcileReplace ReconcileMode = "replace"

	// ReconcileUpsert folds the server's rows in without touching local
	// rows the server did not mention.
	ReconcileUpsert ReconcileMode = "upsert"
)

// ParseReconcileMode maps a config string to a ReconcileMode.
func ParseReconcileMode(s string) (ReconcileMode, error) {
	switch ReconcileMode(strings.ToLower(strings.TrimSpace(s))) {
	case ReconcileReplace, "":
		return ReconcileReplace, nil
	case ReconcileUpsert:
		return ReconcileUpsert, nil
	}
	return "", fmt.Errorf("unknown reconcile mode %q", s)
}

type localStore interface {
	FindByProduct(ctx context.Context, productID int64) (*domain.CartLineItem, error)
	InsertIfAbsent(ctx context.Context, item domain.CartLineItem) (bool, error)
	Update(ctx context.Context, item domain.CartLineItem) error
	Delete(ctx context.Context, productID int64) error
	UpsertAll(ctx context.Context, items []domain.CartLineItem) error
	ReplaceAll(ctx context.Context, items []domain.CartLineItem) error
	Clear(ctx context.Context) error
	GetAll(ctx context.Context) ([]domain.CartLineItem, error)
}

// Options tune reconciliation behavior.
type Options struct {
	// DecrementReconcile controls the write-back used by Decrement when
	// the server confirms the change. The historical behavior is the
	// destructive replace; upsert makes Decrement symmetric with
	// Increment. Empty means replace.
	DecrementReconcile ReconcileMode
}

// Service keeps the local cart cache aligned with the remote cart while
// treating local state as the source of truth between successful
// reconciliations. Every mutation lands locally first; the remote leg is
// best-effort and at most one attempt per operation.
type Service struct {
	store    localStore
	remote   remote.Client
	sessions session.Provider
	logger   *logrus.Logger
	opts     Options
}

// New builds a Service.
func New(store cartitem.Repository, client remote.Client, sessions session.Provider, logger *logrus.Logger, opts Options) *Service {
	if opts.DecrementReconcile == "" {
		opts.DecrementReconcile = ReconcileReplace
	}
	return &Service{
		store:    store,
		remote:   client,
		sessions: sessions,
		logger:   logger,
		opts:     opts,
	}
}

// AddInput describes an add-to-cart intent.
type AddInput struct {
	ProductID      int64
	Name           string
	ImageURL       string
	UnitPriceCents int64
	Quantity       int64
}

// LocalItems is a pure snapshot of the local store. It never touches the
// network and needs no session.
func (s *Service) LocalItems(ctx context.Context) ([]domain.CartLineItem, error) {
	return s.store.GetAll(ctx)
}

// PullRemote fetches the remote cart and reconciles it into the local
// store. A total fetch failure is the one remote error this service
// surfaces; local state is left untouched in that case. An empty remote
// cart never overwrites a non-empty local one; instead the local items
// are pushed up as a new cart, fire-and-forget.
func (s *Service) PullRemote(ctx context.Context) error {
	userID, err := s.sessions.UserID(ctx)
	if err != nil {
		return err
	}

	cart, err := s.remote.Fetch(ctx, userID)
	if err != nil {
		return fmt.Errorf("fetch remote cart: %w", err)
	}

	if cart == nil || len(cart.Items) == 0 {
		local, err := s.store.GetAll(ctx)
		if err != nil {
			return err
		}
		if len(local) > 0 {
			if _, err := s.remote.Create(ctx, userID, toWire(local)); err != nil {
				s.swallow(err, "pull", 0)
			}
		}
		return nil
	}

	merged, err := s.mergeWithLocal(ctx, cart.Items)
	if err != nil {
		return err
	}
	return s.store.ReplaceAll(ctx, merged)
}

// Add applies the add locally first, then makes one best-effort attempt to
// push it to the server. Remote failures and unverifiable responses are
// swallowed; the returned item reflects the local row afterwards.
func (s *Service) Add(ctx context.Context, in AddInput) (*domain.CartLineItem, error) {
	if in.Quantity <= 0 {
		return nil, cartitem.ErrNonPositiveQuantity
	}
	userID, err := s.sessions.UserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.applyAddLocally(ctx, userID, in); err != nil {
		return nil, err
	}

	s.pushAdd(ctx, userID, in)

	return s.store.FindByProduct(ctx, in.ProductID)
}

func (s *Service) applyAddLocally(ctx context.Context, userID int64, in AddInput) error {
	existing, err := s.store.FindByProduct(ctx, in.ProductID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		row := domain.CartLineItem{
			ProductID:      in.ProductID,
			Name:           in.Name,
			ImageURL:       in.ImageURL,
			UnitPriceCents: in.UnitPriceCents,
			Quantity:       in.Quantity,
			UserID:         &userID,
			Synced:         false,
		}
		row.Touch()
		_, err := s.store.InsertIfAbsent(ctx, row)
		return err
	case err != nil:
		return err
	}

	existing.Quantity += in.Quantity
	existing.ImageURL = domain.MergeImageURL(existing.ImageURL, in.ImageURL)
	if in.Name != "" {
		existing.Name = in.Name
	}
	if in.UnitPriceCents > 0 {
		existing.UnitPriceCents = in.UnitPriceCents
	}
	existing.Synced = false
	existing.Touch()
	return s.store.Update(ctx, *existing)
}

func (s *Service) pushAdd(ctx context.Context, userID int64, in AddInput) {
	line := remote.LineItem{
		ProductID:      in.ProductID,
		Name:           in.Name,
		ImageURL:       in.ImageURL,
		UnitPriceCents: in.UnitPriceCents,
		Quantity:       in.Quantity,
	}

	cart, err := s.remote.Fetch(ctx, userID)
	if err != nil || cart == nil || cart.ID == nil {
		if err != nil {
			s.swallow(err, "add", in.ProductID)
		}
		created, err := s.remote.Create(ctx, userID, []remote.LineItem{line})
		if err != nil {
			s.swallow(err, "add", in.ProductID)
			return
		}
		if created != nil {
			s.reconcileVerified(ctx, "add", in.ProductID, created.Items, ReconcileUpsert)
		}
		return
	}

	items := mergeLine(cart.Items, line)
	replaced, err := s.remote.Replace(ctx, *cart.ID, items)
	if err != nil {
		s.swallow(err, "add", in.ProductID)
		return
	}
	if replaced != nil {
		s.reconcileVerified(ctx, "add", in.ProductID, replaced.Items, ReconcileUpsert)
	}
}

// Increment raises the quantity of a local line by one, confirming with
// the server when possible. A verified response reconciles via upsert;
// anything else falls back to a pure local write.
func (s *Service) Increment(ctx context.Context, productID int64) error {
	return s.adjust(ctx, productID, +1, ReconcileUpsert)
}

// Decrement lowers the quantity by one, flooring at zero; a line reaching
// zero is deleted. The verified-response write-back mode is configurable;
// the default destructive replace matches the original behavior.
func (s *Service) Decrement(ctx context.Context, productID int64) error {
	return s.adjust(ctx, productID, -1, s.opts.DecrementReconcile)
}

func (s *Service) adjust(ctx context.Context, productID, delta int64, mode ReconcileMode) error {
	userID, err := s.sessions.UserID(ctx)
	if err != nil {
		return err
	}

	local, err := s.store.FindByProduct(ctx, productID)
	if err != nil {
		return err
	}

	newQty := local.Quantity + delta
	if newQty < 0 {
		newQty = 0
	}

	op := "increment"
	if delta < 0 {
		op = "decrement"
	}

	line := remote.LineItem{
		ProductID:      local.ProductID,
		Name:           local.Name,
		ImageURL:       local.ImageURL,
		UnitPriceCents: local.UnitPriceCents,
		Quantity:       newQty,
	}
	if replaced := s.pushQuantity(ctx, op, userID, line); replaced != nil && len(replaced.Items) > 0 {
		if s.reconcileVerifiedQty(ctx, op, productID, newQty, replaced.Items, mode) {
			return nil
		}
	}

	// Pure local fallback: the user's intent stands even when the server
	// could not confirm it.
	if newQty == 0 {
		return s.store.Delete(ctx, productID)
	}
	local.Quantity = newQty
	local.Synced = false
	local.Touch()
	return s.store.Update(ctx, *local)
}

// pushQuantity attempts the remote full-replace carrying the new quantity.
// It returns nil whenever the attempt could not produce a usable response.
func (s *Service) pushQuantity(ctx context.Context, op string, userID int64, line remote.LineItem) *remote.Cart {
	cart, err := s.remote.Fetch(ctx, userID)
	if err != nil {
		s.swallow(err, op, line.ProductID)
		return nil
	}
	if cart == nil || cart.ID == nil {
		return nil
	}

	items := setQuantity(cart.Items, line)
	replaced, err := s.remote.Replace(ctx, *cart.ID, items)
	if err != nil {
		s.swallow(err, op, line.ProductID)
		return nil
	}
	return replaced
}

// Remove deletes a line item. The server is asked to drop it via a full
// replace; a verified non-empty response reconciles destructively, and any
// failure falls back to deleting the local row directly.
func (s *Service) Remove(ctx context.Context, productID int64) error {
	userID, err := s.sessions.UserID(ctx)
	if err != nil {
		return err
	}

	if cart, err := s.remote.Fetch(ctx, userID); err != nil {
		s.swallow(err, "remove", productID)
	} else if cart != nil && cart.ID != nil {
		items := setQuantity(cart.Items, remote.LineItem{ProductID: productID})
		replaced, err := s.remote.Replace(ctx, *cart.ID, items)
		if err != nil {
			s.swallow(err, "remove", productID)
		} else if replaced != nil && len(replaced.Items) > 0 && !containsProduct(replaced.Items, productID) {
			merged, err := s.mergeWithLocal(ctx, replaced.Items)
			if err != nil {
				return err
			}
			return s.store.ReplaceAll(ctx, merged)
		}
	}

	return s.store.Delete(ctx, productID)
}

// Clear drops the remote cart best-effort, then unconditionally empties
// the local store. Calling it on an already empty cart is a no-op.
func (s *Service) Clear(ctx context.Context) error {
	userID, err := s.sessions.UserID(ctx)
	if err != nil {
		return err
	}

	if cart, err := s.remote.Fetch(ctx, userID); err != nil {
		s.swallow(err, "clear", 0)
	} else if cart != nil && cart.ID != nil {
		if err := s.remote.Drop(ctx, *cart.ID); err != nil {
			s.swallow(err, "clear", 0)
		}
	}

	return s.store.Clear(ctx)
}

// reconcileVerified writes server items back only when the set contains
// the product the caller just touched. A response missing it is treated
// like a remote failure: local state stays authoritative.
func (s *Service) reconcileVerified(ctx context.Context, op string, productID int64, items []remote.LineItem, mode ReconcileMode) bool {
	if len(items) == 0 || !containsProduct(items, productID) {
		s.logger.WithFields(logrus.Fields{"op": op, "productId": productID}).
			Warn("remote response failed safety check, keeping local state")
		return false
	}
	merged, err := s.mergeWithLocal(ctx, items)
	if err != nil {
		s.swallow(err, op, productID)
		return false
	}
	if mode == ReconcileReplace {
		err = s.store.ReplaceAll(ctx, merged)
	} else {
		err = s.store.UpsertAll(ctx, merged)
	}
	if err != nil {
		s.swallow(err, op, productID)
		return false
	}
	return true
}

// reconcileVerifiedQty is the quantity-adjustment variant: when the target
// line was driven to zero the server set legitimately lacks it, so the
// safety check inverts and the local row must go away.
func (s *Service) reconcileVerifiedQty(ctx context.Context, op string, productID, newQty int64, items []remote.LineItem, mode ReconcileMode) bool {
	if newQty > 0 {
		return s.reconcileVerified(ctx, op, productID, items, mode)
	}
	if containsProduct(items, productID) {
		s.logger.WithFields(logrus.Fields{"op": op, "productId": productID}).
			Warn("remote response failed safety check, keeping local state")
		return false
	}
	merged, err := s.mergeWithLocal(ctx, items)
	if err != nil {
		s.swallow(err, op, productID)
		return false
	}
	if mode == ReconcileReplace {
		if err := s.store.ReplaceAll(ctx, merged); err != nil {
			s.swallow(err, op, productID)
			return false
		}
		return true
	}
	if err := s.store.UpsertAll(ctx, merged); err != nil {
		s.swallow(err, op, productID)
		return false
	}
	if err := s.store.Delete(ctx, productID); err != nil {
		s.swallow(err, op, productID)
		return false
	}
	return true
}

// mergeWithLocal translates remote lines into local entities, preserving
// locally held images per productId.
func (s *Service) mergeWithLocal(ctx context.Context, items []remote.LineItem) ([]domain.CartLineItem, error) {
	local, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[int64]*domain.CartLineItem, len(local))
	for i := range local {
		byProduct[local[i].ProductID] = &local[i]
	}

	merged := make([]domain.CartLineItem, 0, len(items))
	for _, item := range items {
		merged = append(merged, domain.MergeRemoteLine(byProduct[item.ProductID], fromWire(item)))
	}
	return merged, nil
}

func (s *Service) swallow(err error, op string, productID int64) {
	s.logger.WithError(err).WithFields(logrus.Fields{"op": op, "productId": productID}).
		Warn("remote cart call failed, continuing with local state")
}

func toWire(items []domain.CartLineItem) []remote.LineItem {
	wire := make([]remote.LineItem, 0, len(items))
	for _, item := range items {
		wire = append(wire, remote.LineItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			ImageURL:       item.ImageURL,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
		})
	}
	return wire
}

func fromWire(item remote.LineItem) domain.CartLineItem {
	return domain.CartLineItem{
		ProductID:      item.ProductID,
		Name:           item.Name,
		ImageURL:       item.ImageURL,
		UnitPriceCents: item.UnitPriceCents,
		Quantity:       item.Quantity,
	}
}

func containsProduct(items []remote.LineItem, productID int64) bool {
	for _, item := range items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// mergeLine folds one line into a remote item list: an existing line for
// the product accumulates quantity, otherwise the line is appended.
func mergeLine(items []remote.LineItem, line remote.LineItem) []remote.LineItem {
	for i := range items {
		if items[i].ProductID == line.ProductID {
			items[i].Quantity += line.Quantity
			items[i].ImageURL = domain.MergeImageURL(items[i].ImageURL, line.ImageURL)
			return items
		}
	}
	return append(items, line)
}

// setQuantity rewrites the target line in a remote item list with line's
// quantity, dropping it when the quantity is zero and appending the full
// line when the server did not know it yet.
func setQuantity(items []remote.LineItem, line remote.LineItem) []remote.LineItem {
	out := make([]remote.LineItem, 0, len(items)+1)
	found := false
	for _, item := range items {
		if item.ProductID == line.ProductID {
			found = true
			if line.Quantity <= 0 {
				continue
			}
			item.Quantity = line.Quantity
		}
		out = append(out, item)
	}
	if !found && line.Quantity > 0 {
		out = append(out, line)
	}
	return out
}
