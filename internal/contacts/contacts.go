// Package contacts lists the peers available for a new conversation.
package contacts

import (
	"context"
	"sort"

	"github.com/alonc7/chatapp-go/internal/docstore"
	"github.com/alonc7/chatapp-go/internal/model"
)

// List reads every user profile except the caller's own, sorted by
// display name for a stable screen. An empty slice with a nil error
// means "no user available".
func List(ctx context.Context, store docstore.Store, selfID string) ([]model.User, error) {
	docs, err := store.Query(ctx, docstore.NewQuery(model.CollectionUsers))
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		if d.ID == selfID {
			continue
		}
		users = append(users, model.UserFromDocument(d))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}
