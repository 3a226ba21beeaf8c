// Package notify carries "this collection changed" signals from the store to
// whatever caches or subscribers front it.
package notify

import (
	"context"
	"errors"
)

// Collection names a persisted collection.
type Collection string

const (
	Articles   Collection = "articles"
	Categories Collection = "categories"
)

// Invalidator is told which collections went stale after a mutation.
type Invalidator interface {
	Invalidate(ctx context.Context, collections ...Collection) error
}

// Nop drops every signal.
type Nop struct{}

func (Nop) Invalidate(context.Context, ...Collection) error { return nil }

// Func adapts a plain function to Invalidator.
type Func func(ctx context.Context, collections ...Collection) error

func (f Func) Invalidate(ctx context.Context, collections ...Collection) error {
	return f(ctx, collections...)
}

// Multi fans a signal out to every invalidator, in order. All of them are
// called even if one fails; the errors are joined.
type Multi []Invalidator

func (m Multi) Invalidate(ctx context.Context, collections ...Collection) error {
	var errs []error
	for _, inv := range m {
		if inv == nil {
			continue
		}
		if err := inv.Invalidate(ctx, collections...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Valid reports whether c is a known collection name.
func Valid(c Collection) bool {
	return c == Articles || c == Categories
}
