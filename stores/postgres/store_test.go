package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
)

// Set ADVERT_TEST_POSTGRES_DSN to a disposable database to run these tests.
func setupTestStore(t *testing.T) *postgresStore {
	t.Helper()
	dsn := os.Getenv("ADVERT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ADVERT_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	store, err := NewStore(ctx, dsn)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if _, err := store.pool.Exec(ctx, "TRUNCATE adverts, users"); err != nil {
		t.Fatalf("truncate failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestWhereClause(t *testing.T) {
	where, args := whereClause(core.AdvertFilter{ID: "a", Owner: "u1", Text: &core.TextMatch{Title: "50%", Description: "x"}}, 7)

	want := ` WHERE id = $7 AND owner = $8 AND (title ILIKE $9 OR description ILIKE $10)`
	if where != want {
		t.Errorf("where = %q, want %q", where, want)
	}
	if len(args) != 4 || args[2] != `%50\%%` {
		t.Errorf("args = %v", args)
	}

	if where, args := whereClause(core.AdvertFilter{}, 1); where != "" || args != nil {
		t.Errorf("empty filter rendered %q %v", where, args)
	}
}

func TestInsertFindCount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		advert := &core.Advert{
			Title: fmt.Sprintf("advert %d", i), Description: "desc", ImageURL: "u", Owner: "u1",
			Attributes: core.Attributes{core.AttributePrice: fmt.Sprint(i)},
		}
		if _, err := store.Insert(ctx, advert); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	page, err := store.Find(ctx, core.AdvertFilter{Text: &core.TextMatch{Title: "ADVERT"}}, 2, 2)
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(page) != 2 || page[0].Title != "advert 2" || page[0].Attributes[core.AttributePrice] != "2" {
		t.Errorf("unexpected page: %+v", page)
	}

	n, err := store.Count(ctx, core.AdvertFilter{Owner: "u1"})
	if err != nil || n != 4 {
		t.Errorf("Count() = %d, %v", n, err)
	}
}

func TestInsert_DuplicateTitleOwner(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	store.Insert(ctx, &core.Advert{Title: "Dup", Description: "d", ImageURL: "u", Owner: "u1"})
	_, err := store.Insert(ctx, &core.Advert{Title: "Dup", Description: "d", ImageURL: "u", Owner: "u1"})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("Insert() duplicate error = %v, want ErrConflict", err)
	}
}

func TestReplaceAndDelete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	advert := &core.Advert{Title: "old", Description: "d", ImageURL: "u", Owner: "u1"}
	store.Insert(ctx, advert)

	if n, _ := store.ReplaceOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u2"}, &core.Advert{Title: "x", Description: "d", ImageURL: "x"}); n != 0 {
		t.Errorf("ReplaceOne() by non-owner matched %d", n)
	}
	if n, err := store.ReplaceOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u1"}, &core.Advert{Title: "new", Description: "d", ImageURL: "v"}); err != nil || n != 1 {
		t.Fatalf("ReplaceOne() = %d, %v", n, err)
	}
	found, _ := store.Find(ctx, core.AdvertFilter{ID: advert.ID}, 1, 0)
	if len(found) != 1 || found[0].Title != "new" || found[0].Owner != "u1" {
		t.Errorf("unexpected replaced advert: %+v", found)
	}

	if n, _ := store.DeleteOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u1"}); n != 1 {
		t.Errorf("DeleteOne() deleted %d, want 1", n)
	}
}

func TestUsers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	u := &core.User{Username: "alice", Email: "alice@example.com", PasswordHash: "h", Roles: []string{core.RolePoster}}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if err := store.CreateUser(ctx, &core.User{Username: "x", Email: "ALICE@example.com"}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}

	got, err := store.FindUserByEmail(ctx, "Alice@Example.com")
	if err != nil || got.ID != u.ID || len(got.Roles) != 1 {
		t.Errorf("FindUserByEmail() = %+v, %v", got, err)
	}
	if _, err := store.FindUserBySubject(ctx, "github:9"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindUserBySubject() error = %v, want ErrNotFound", err)
	}
}
