package artifact

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wb-go/wbf/dbpg"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/registry"
)

// Runs against a live database only when FILEFLEXOR_TEST_DSN is set.
func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	dsn := os.Getenv("FILEFLEXOR_TEST_DSN")
	if dsn == "" {
		t.Skip("FILEFLEXOR_TEST_DSN not set")
	}

	db, err := dbpg.New(dsn, nil, &dbpg.Options{MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Master.Close() })

	repo := NewRepository(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}

	return repo
}

func TestRepositoryLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	area := "test-" + time.Now().Format("150405.000000")
	now := time.Now().UTC().Truncate(time.Second)

	if err := repo.Save(ctx, registry.Entry{Area: area, Name: "a", ExpiresAt: now.Add(-time.Second)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Save(ctx, registry.Entry{Area: area, Name: "b", ExpiresAt: now.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = repo.Delete(ctx, area, "a")
		_ = repo.Delete(ctx, area, "b")
	})

	ok, err := repo.SaveIfAbsent(ctx, registry.Entry{Area: area, Name: "b", ExpiresAt: now})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("SaveIfAbsent must not replace an existing entry")
	}

	// b is due in an hour; moving it later is ignored, earlier is kept.
	if err := repo.SaveIfEarlier(ctx, registry.Entry{Area: area, Name: "b", ExpiresAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveIfEarlier(ctx, registry.Entry{Area: area, Name: "b", ExpiresAt: now.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	later, err := repo.Due(ctx, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	movedB := false
	for _, e := range later {
		if e.Area == area && e.Name == "b" {
			movedB = true
		}
	}
	if !movedB {
		t.Fatal("expected b to be due after moving its deadline earlier")
	}

	due, err := repo.Due(ctx, now)
	if err != nil {
		t.Fatal(err)
	}

	found := false
	for _, e := range due {
		if e.Area != area {
			continue
		}
		if e.Name != "a" {
			t.Fatalf("unexpected due entry %+v", e)
		}
		found = true
	}
	if !found {
		t.Fatal("expected entry a to be due")
	}

	if err := repo.Delete(ctx, area, "a"); err != nil {
		t.Fatal(err)
	}
}

var _ registry.Store = (*Repository)(nil)
