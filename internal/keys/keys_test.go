package keys

import "testing"

type orderLine struct {
	OrderID int
	Line    int
}

func (o orderLine) KeyParts() []any { return []any{o.OrderID, o.Line} }

func TestPrefix(t *testing.T) {
	cases := []struct {
		name, op, table, version, want string
	}{
		{"unversioned", OpGet, "users", "", "db:get:users:"},
		{"versioned", OpGet, "users", "3", "db:get:users|3:"},
		{"count", OpCount, "users", "", "db:count:users:"},
		{"filter_first", OpFilterFirst, "posts", "v2", "db:ff:posts|v2:"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Prefix("db", tc.op, tc.table, tc.version); got != tc.want {
				t.Fatalf("Prefix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestPrefixNoCrossTableOrOpCollision(t *testing.T) {
	seen := map[string]string{}
	for _, table := range []string{"users", "posts"} {
		for _, op := range []string{OpGet, OpCount, OpFilterFirst, OpFilterCount} {
			k := Prefix("db", op, table, "") + ForIdent(7)
			if prev, dup := seen[k]; dup {
				t.Fatalf("%s/%s collides with %s: %q", table, op, prev, k)
			}
			seen[k] = table + "/" + op
		}
	}
}

func TestForIdent(t *testing.T) {
	if got := ForIdent(42); got != "42" {
		t.Fatalf("scalar = %q", got)
	}
	if got := ForIdent("abc"); got != "abc" {
		t.Fatalf("string = %q", got)
	}
	if got := ForIdent(orderLine{OrderID: 10, Line: 2}); got != "10-2" {
		t.Fatalf("composite = %q", got)
	}
}

func TestForPredicateIsOrderStable(t *testing.T) {
	a := ForPredicate(map[string]any{"a": 1, "b": 2})
	b := ForPredicate(map[string]any{"b": 2, "a": 1})
	if a != b {
		t.Fatalf("predicate keys differ: %q vs %q", a, b)
	}
	if a != "a$1-b$2" {
		t.Fatalf("ForPredicate = %q", a)
	}
	if ForPredicate(nil) != "" {
		t.Fatalf("empty predicate should have empty suffix")
	}
	if ForPredicate(map[string]any{"a": 1}) == ForPredicate(map[string]any{"a": 2}) {
		t.Fatalf("different values must not collide")
	}
}
