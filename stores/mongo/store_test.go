package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/FREEWORLD-HUB/group1-advertisement/core"
)

// Set ADVERT_TEST_MONGO_URI (e.g. mongodb://localhost:27017) to run these tests.
func setupTestStore(t *testing.T) *mongoStore {
	t.Helper()
	uri := os.Getenv("ADVERT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("ADVERT_TEST_MONGO_URI not set")
	}

	database := fmt.Sprintf("advert_test_%d", time.Now().UnixNano())
	store, err := NewStore(context.Background(), uri, database)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	t.Cleanup(func() {
		store.client.Database(database).Drop(context.Background())
		store.Close()
	})
	return store
}

func TestInsertAndFind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		advert := &core.Advert{Title: fmt.Sprintf("advert %d", i), Description: "d", ImageURL: "u", Owner: "u1"}
		if _, err := store.Insert(ctx, advert); err != nil {
			t.Fatalf("Insert() failed: %v", err)
		}
	}

	page, err := store.Find(ctx, core.AdvertFilter{}, 2, 1)
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(page) != 2 || page[0].Title != "advert 1" || page[1].Title != "advert 2" {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestInsert_DuplicateTitleOwner(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Insert(ctx, &core.Advert{Title: "Dup", ImageURL: "u", Owner: "u1"}); err != nil {
		t.Fatalf("Insert() failed: %v", err)
	}
	_, err := store.Insert(ctx, &core.Advert{Title: "Dup", ImageURL: "u", Owner: "u1"})
	if !errors.Is(err, core.ErrConflict) {
		t.Errorf("Insert() duplicate error = %v, want ErrConflict", err)
	}
}

func TestFind_TextMatchIsLiteral(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	store.Insert(ctx, &core.Advert{Title: "C++ developer", Description: "d", ImageURL: "u", Owner: "u1"})
	store.Insert(ctx, &core.Advert{Title: "CCC", Description: "d", ImageURL: "u", Owner: "u1"})

	found, err := store.Find(ctx, core.AdvertFilter{Text: &core.TextMatch{Title: "c++", Description: "zzz"}}, 10, 0)
	if err != nil {
		t.Fatalf("Find() failed: %v", err)
	}
	if len(found) != 1 || found[0].Title != "C++ developer" {
		t.Errorf("Find(c++) returned %+v", found)
	}
}

func TestReplaceAndDelete_OwnerScoped(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	advert := &core.Advert{
		Title: "old", Description: "d", ImageURL: "u", Owner: "u1",
		Attributes: core.Attributes{core.AttributePrice: "10"}, CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	store.Insert(ctx, advert)

	if n, _ := store.ReplaceOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u2"}, &core.Advert{Title: "x", ImageURL: "x"}); n != 0 {
		t.Errorf("ReplaceOne() by non-owner matched %d", n)
	}
	n, err := store.ReplaceOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u1"}, &core.Advert{Title: "new", Description: "d", ImageURL: "v"})
	if err != nil || n != 1 {
		t.Fatalf("ReplaceOne() = %d, %v", n, err)
	}

	found, _ := store.Find(ctx, core.AdvertFilter{ID: advert.ID}, 1, 0)
	if len(found) != 1 || found[0].Title != "new" || found[0].Owner != "u1" || found[0].Attributes != nil {
		t.Errorf("unexpected replaced advert: %+v", found)
	}
	if !found[0].CreatedAt.Equal(advert.CreatedAt) {
		t.Errorf("CreatedAt changed: %v != %v", found[0].CreatedAt, advert.CreatedAt)
	}

	if n, _ := store.DeleteOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u2"}); n != 0 {
		t.Errorf("DeleteOne() by non-owner deleted %d", n)
	}
	if n, _ := store.DeleteOne(ctx, core.AdvertFilter{ID: advert.ID, Owner: "u1"}); n != 1 {
		t.Errorf("DeleteOne() by owner deleted %d", n)
	}
}

func TestUsers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	u := &core.User{Username: "alice", Email: "Alice@example.com", Roles: []string{core.RoleHost}}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if err := store.CreateUser(ctx, &core.User{Username: "a", Email: "alice@EXAMPLE.com"}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}
	if err := store.CreateUser(ctx, &core.User{Username: "b", Subject: "github:1"}); err != nil {
		t.Errorf("CreateUser() without email failed: %v", err)
	}
	if err := store.CreateUser(ctx, &core.User{Username: "c", Subject: "github:2"}); err != nil {
		t.Errorf("second CreateUser() without email failed: %v", err)
	}

	got, err := store.FindUserByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != u.ID {
		t.Errorf("FindUserByEmail() = %+v, %v", got, err)
	}
	if _, err := store.FindUserByID(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindUserByID() error = %v, want ErrNotFound", err)
	}
}
