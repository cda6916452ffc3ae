package querycache_test

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/unkn0wn-root/querycache"
	"github.com/unkn0wn-root/querycache/backend"
	"github.com/unkn0wn-root/querycache/codec"
	"github.com/unkn0wn-root/querycache/config"
	"github.com/unkn0wn-root/querycache/hooks/sloghook"
	qslog "github.com/unkn0wn-root/querycache/log/slog"
)

type Post struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// postStore is the persistent store: it answers the cache's lookups and
// raises events after its writes commit.
type postStore struct {
	db *sql.DB
	querycache.Events[Post]
}

func (s *postStore) Lookup(ctx context.Context, id int64) (Post, bool, error) {
	var p Post
	err := s.db.QueryRowContext(ctx, `SELECT id, title FROM posts WHERE id = ?`, id).Scan(&p.ID, &p.Title)
	if err == sql.ErrNoRows {
		return p, false, nil
	}
	return p, err == nil, err
}

func (s *postStore) LookupMany(ctx context.Context, ids []int64) ([]Post, error) { return nil, nil }
func (s *postStore) First(ctx context.Context, p querycache.Predicate) (Post, bool, error) {
	return Post{}, false, nil
}
func (s *postStore) Count(ctx context.Context, p querycache.Predicate) (int64, error) { return 0, nil }

func (s *postStore) Rename(ctx context.Context, id int64, title string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE posts SET title = ? WHERE id = ?`, title, id); err != nil {
		return err
	}
	return s.EmitUpdate(ctx, Post{ID: id, Title: title})
}

func Example() {
	ctx := context.Background()

	// once at startup
	settings, err := config.Load("blog")
	if err != nil {
		panic(err)
	}
	reg := backend.NewRegistry()
	defer reg.Close(ctx)
	provider := backend.MustConfigure(ctx, settings, reg)
	gens, err := backend.ConfigureGenStore(ctx, settings, reg)
	if err != nil {
		panic(err)
	}

	store := &postStore{}
	posts, err := querycache.New[Post, int64](querycache.Options[Post, int64]{
		Table: querycache.Table[Post, int64]{
			Name:       "posts",
			Version:    "1",
			PrimaryKey: []string{"id"},
			ID:         func(p Post) int64 { return p.ID },
		},
		Source:   store,
		Provider: provider,
		GenStore: gens,
		Codec:    codec.JSON[Post]{},
		Logger:   qslog.Logger{L: slog.Default()},
		Hooks:    sloghook.New(slog.Default(), sloghook.Options{LookupEvery: 100}),
	})
	if err != nil {
		panic(err)
	}
	defer posts.Close(ctx)
	posts.Invalidator().Subscribe(&store.Events)

	// per request
	p, err := posts.GetOr404(ctx, 42)
	fmt.Println(p.Title, err)
}
