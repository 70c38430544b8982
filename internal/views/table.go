package views

import (
	"context"
	"fmt"

	"ticketkenya/internal/cache"
)

// Table is a mounted list with a confirm-gated delete.
type Table[T any] struct {
	deps  Deps
	noun  string
	watch *cache.Watch[[]T]
	del   func(ctx context.Context, id int64) error
}

func newTable[T any](deps Deps, noun string, q cache.Query[[]T], del func(context.Context, int64) error) *Table[T] {
	return &Table[T]{
		deps:  deps,
		noun:  noun,
		watch: cache.Subscribe(deps.Resources.Cache(), q),
		del:   del,
	}
}

func (t *Table[T]) Rows(ctx context.Context) ([]T, error) {
	return t.watch.Get(ctx)
}

// Reload refetches the list, also serving as the retry after an error.
func (t *Table[T]) Reload(ctx context.Context) ([]T, error) {
	return t.watch.Refetch(ctx)
}

// Delete asks for confirmation first. A declined or missing confirmation
// sends nothing and reports false.
func (t *Table[T]) Delete(ctx context.Context, id int64) (bool, error) {
	if t.deps.Confirmer == nil {
		return false, nil
	}
	ok, err := t.deps.Confirmer.Confirm(ctx, "Are you sure?", fmt.Sprintf("Delete %s #%d? You won't be able to revert this!", t.noun, id))
	if err != nil || !ok {
		return false, err
	}
	if err := t.del(ctx, id); err != nil {
		t.deps.notifier().Error("Delete failed", Describe(err))
		return false, err
	}
	t.deps.notifier().Success("Deleted!", fmt.Sprintf("The %s has been deleted.", t.noun))
	return true, nil
}

func (t *Table[T]) Unmount() {
	t.watch.Release()
}

// report shows the outcome of a row action to the notifier.
func report[T any](deps Deps, v T, err error, title, okMsg string) (T, error) {
	if err != nil {
		deps.notifier().Error(title+" failed", Describe(err))
		return v, err
	}
	deps.notifier().Success(title, okMsg)
	return v, nil
}
