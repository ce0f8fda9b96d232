package contacts

import (
	"context"
	"testing"

	"github.com/alonc7/chatapp-go/internal/docstore"
	"github.com/alonc7/chatapp-go/internal/docstore/memstore"
	"github.com/alonc7/chatapp-go/internal/model"
)

func addUser(t *testing.T, s *memstore.Store, name, email string) string {
	t.Helper()
	id, err := s.Add(context.Background(), model.CollectionUsers, docstore.Fields{
		model.KeyName:  name,
		model.KeyEmail: email,
	})
	if err != nil {
		t.Fatalf("add user: %v", err)
	}
	return id
}

func TestListSkipsSelfAndSortsByName(t *testing.T) {
	s := memstore.New()
	addUser(t, s, "Carol", "c@x.com")
	self := addUser(t, s, "Alice", "a@x.com")
	addUser(t, s, "Bob", "b@x.com")

	users, err := List(context.Background(), s, self)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Name != "Bob" || users[1].Name != "Carol" {
		t.Fatalf("wrong order: %+v", users)
	}
	for _, u := range users {
		if u.ID == self {
			t.Fatalf("self included in contact list")
		}
	}
}

func TestListEmptyStore(t *testing.T) {
	users, err := List(context.Background(), memstore.New(), "me")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected no users, got %+v", users)
	}
}
