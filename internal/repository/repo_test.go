package repository

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewRepo(db)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	for i := 0; i < 2; i++ {
		db, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		db.Close()
	}
}

func TestSettings(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	if _, err := r.GetSettings(ctx, "g"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("GetSettings on unknown guild: %v", err)
	}
	if v := r.DefaultVolume(ctx, "g", 80); v != 80 {
		t.Errorf("DefaultVolume without row = %d, want fallback 80", v)
	}

	s, err := r.UpsertSettings(ctx, "g")
	if err != nil {
		t.Fatalf("UpsertSettings: %v", err)
	}
	if s.DefaultVolume != 100 || s.DefaultQueuePageSize != 10 || !s.LeaveIfNoListeners {
		t.Errorf("defaults = %+v", s)
	}

	s.DefaultVolume = 35
	s.AutoAnnounceNext = true
	if err := r.UpdateSettings(ctx, s); err != nil {
		t.Fatal(err)
	}
	got, err := r.UpsertSettings(ctx, "g")
	if err != nil {
		t.Fatal(err)
	}
	if got.DefaultVolume != 35 || !got.AutoAnnounceNext {
		t.Errorf("upsert overwrote settings: %+v", got)
	}
	if v := r.DefaultVolume(ctx, "g", 80); v != 35 {
		t.Errorf("DefaultVolume = %d, want 35", v)
	}
}

func TestFavorites(t *testing.T) {
	r := openTestRepo(t)
	fav := NewFavoritesService(r)
	ctx := context.Background()

	if err := fav.Create(ctx, "g", "u1", "  chill ", " lofi beats ", "album"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fav.Create(ctx, "g", "u2", "chill", "other", ""); !errors.Is(err, ErrFavoriteExists) {
		t.Errorf("duplicate Create err = %v, want ErrFavoriteExists", err)
	}
	if err := fav.Create(ctx, "g", "u2", " ", "x", ""); !errors.Is(err, ErrFavoriteName) {
		t.Errorf("blank name err = %v, want ErrFavoriteName", err)
	}
	if err := fav.Create(ctx, "other-guild", "u2", "chill", "jazz", ""); err != nil {
		t.Errorf("same name in another guild: %v", err)
	}

	f, err := fav.Use(ctx, "g", "chill")
	if err != nil {
		t.Fatalf("Use: %v", err)
	}
	if f.Query != "lofi beats" || f.Kind != "album" || f.Author != "u1" {
		t.Errorf("favorite = %+v", f)
	}

	list, err := fav.List(ctx, "g")
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %v, %v", list, err)
	}

	if err := fav.Remove(ctx, "g", "chill"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := fav.Remove(ctx, "g", "chill"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("second Remove err = %v", err)
	}
	if _, err := fav.Use(ctx, "g", "chill"); !errors.Is(err, ErrFavoriteNotFound) {
		t.Errorf("Use after remove err = %v", err)
	}
}

func TestCacheIndex(t *testing.T) {
	r := openTestRepo(t)
	ctx := context.Background()

	if err := r.CacheTouch(ctx, "a", 10, true); err != nil {
		t.Fatal(err)
	}
	if err := r.CacheTouch(ctx, "b", 5, true); err != nil {
		t.Fatal(err)
	}
	if err := r.CacheTouch(ctx, "a", 0, false); err != nil {
		t.Fatal(err)
	}

	total, err := r.CacheTotalBytes(ctx)
	if err != nil || total != 15 {
		t.Errorf("total = %d, %v; want 15", total, err)
	}
	oldest, err := r.CacheOldest(ctx)
	if err != nil || oldest != "b" {
		t.Errorf("oldest = %q, %v; want b", oldest, err)
	}
	if err := r.CacheRemove(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if total, _ := r.CacheTotalBytes(ctx); total != 10 {
		t.Errorf("total after remove = %d, want 10", total)
	}
}
