package querycache

import (
	"context"
	"errors"
	"sync"
)

// Handler reacts to a committed write of one entity.
type Handler[V any] func(ctx context.Context, v V) error

// Events is the observer registry a store implementation embeds for one table.
// The store calls Emit* after the write has committed; subscribers register
// once at startup. The zero value is ready to use.
type Events[V any] struct {
	mu     sync.RWMutex
	insert []Handler[V]
	update []Handler[V]
	delete []Handler[V]
}

func (e *Events[V]) OnInsert(h Handler[V]) { e.add(&e.insert, h) }
func (e *Events[V]) OnUpdate(h Handler[V]) { e.add(&e.update, h) }
func (e *Events[V]) OnDelete(h Handler[V]) { e.add(&e.delete, h) }

func (e *Events[V]) add(list *[]Handler[V], h Handler[V]) {
	e.mu.Lock()
	*list = append(*list, h)
	e.mu.Unlock()
}

// EmitInsert runs every insert handler; errors are joined, none stops the rest.
func (e *Events[V]) EmitInsert(ctx context.Context, v V) error { return e.emit(ctx, &e.insert, v) }
func (e *Events[V]) EmitUpdate(ctx context.Context, v V) error { return e.emit(ctx, &e.update, v) }
func (e *Events[V]) EmitDelete(ctx context.Context, v V) error { return e.emit(ctx, &e.delete, v) }

func (e *Events[V]) emit(ctx context.Context, list *[]Handler[V], v V) error {
	e.mu.RLock()
	hs := *list
	e.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
