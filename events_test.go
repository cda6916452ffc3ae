package querycache

import (
	"context"
	"errors"
	"testing"
)

func TestEventsRunAllHandlers(t *testing.T) {
	ctx := context.Background()
	var ev Events[user]
	var order []string
	e1 := errors.New("first")
	e2 := errors.New("second")

	ev.OnUpdate(func(context.Context, user) error { order = append(order, "a"); return e1 })
	ev.OnUpdate(func(context.Context, user) error { order = append(order, "b"); return nil })
	ev.OnUpdate(func(context.Context, user) error { order = append(order, "c"); return e2 })
	ev.OnInsert(func(context.Context, user) error { order = append(order, "insert"); return nil })

	err := ev.EmitUpdate(ctx, user{ID: 1})
	if !errors.Is(err, e1) || !errors.Is(err, e2) {
		t.Fatalf("errors should be joined: %v", err)
	}
	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Fatalf("handlers should run in registration order: %v", order)
	}
	if err := ev.EmitDelete(ctx, user{ID: 1}); err != nil {
		t.Fatalf("no delete handlers: %v", err)
	}
}

func TestNotFoundSubject(t *testing.T) {
	tests := []struct {
		err  *NotFoundError
		want string
	}{
		{&NotFoundError{Entity: "users", Ident: 7}, `users "7" not found`},
		{&NotFoundError{Entity: "users", Predicate: Predicate{"name": "ada"}}, `users "ada" not found`},
		{&NotFoundError{Entity: "users", Predicate: Predicate{"a": 1, "b": 2}}, `users not found`},
		{&NotFoundError{Entity: "users"}, `users not found`},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q want %q", got, tt.want)
		}
	}
}
