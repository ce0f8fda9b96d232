// Package memstore is an in-process docstore backend. It backs the
// `memory` mode for offline runs and stands in for the remote store in
// tests. Documents live only for the process lifetime.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alonc7/chatapp-go/internal/docstore"
)

type Store struct {
	// Now supplies server-assigned write timestamps; replace before
	// first use for deterministic tests.
	Now func() time.Time

	mu     sync.Mutex
	cols   map[string][]docstore.Document
	subs   map[int64]*subscription
	nextID int64
	closed bool
}

type subscription struct {
	id    int64
	query docstore.Query
	h     docstore.Handler
	store *Store
}

func New() *Store {
	return &Store{
		Now:  time.Now,
		cols: make(map[string][]docstore.Document),
		subs: make(map[int64]*subscription),
	}
}

func (s *Store) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	doc := docstore.Document{ID: uuid.NewString(), Fields: make(docstore.Fields, len(fields))}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", docstore.ErrClosed
	}
	for k, v := range fields {
		switch v {
		case docstore.Delete:
			// deleting a field on a fresh document is a no-op
		case docstore.ServerTimestamp:
			doc.Fields[k] = s.Now().UTC().Format(docstore.TimeLayout)
		default:
			doc.Fields[k] = v
		}
	}
	s.cols[collection] = append(s.cols[collection], doc)

	// Handlers run outside the lock so they may call back into the
	// store.
	var notify []docstore.Handler
	for _, sub := range s.subs {
		if sub.query.Collection == collection && sub.query.Matches(doc) {
			notify = append(notify, sub.h)
		}
	}
	s.mu.Unlock()

	for _, h := range notify {
		h([]docstore.Document{copyDoc(doc)}, nil)
	}
	return doc.ID, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	var out []docstore.Document
	for _, d := range s.cols[q.Collection] {
		if q.Matches(d) {
			out = append(out, copyDoc(d))
		}
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return docstore.ErrClosed
	}
	docs := s.cols[collection]
	for i := range docs {
		if docs[i].ID != id {
			continue
		}
		for k, v := range fields {
			switch v {
			case docstore.Delete:
				delete(docs[i].Fields, k)
			case docstore.ServerTimestamp:
				docs[i].Fields[k] = s.Now().UTC().Format(docstore.TimeLayout)
			default:
				docs[i].Fields[k] = v
			}
		}
		return nil
	}
	return docstore.ErrNotFound
}

// Subscribe delivers the current result set as the first batch, then a
// one-document batch per later matching Add. Updates to existing
// documents are not re-delivered; chat messages are immutable.
func (s *Store) Subscribe(ctx context.Context, q docstore.Query, h docstore.Handler) (docstore.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}
	s.nextID++
	sub := &subscription{id: s.nextID, query: q, h: h, store: s}
	s.subs[sub.id] = sub

	var initial []docstore.Document
	for _, d := range s.cols[q.Collection] {
		if q.Matches(d) {
			initial = append(initial, copyDoc(d))
		}
	}
	s.mu.Unlock()

	if len(initial) > 0 {
		h(initial, nil)
	}
	return sub, nil
}

func (sub *subscription) Close() error {
	sub.store.mu.Lock()
	delete(sub.store.subs, sub.id)
	sub.store.mu.Unlock()
	return nil
}

// Close drops all subscriptions and rejects further operations.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.subs = make(map[int64]*subscription)
	s.mu.Unlock()
	return nil
}

func copyDoc(d docstore.Document) docstore.Document {
	out := docstore.Document{ID: d.ID, Fields: make(docstore.Fields, len(d.Fields))}
	for k, v := range d.Fields {
		out.Fields[k] = v
	}
	return out
}
