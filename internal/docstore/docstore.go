// Package docstore defines the client-side view of the remote document
// database: schemaless collections, equality-filtered queries and live
// subscriptions. Backends live in subpackages; callers only see Store.
package docstore

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("docstore: document not found")
	ErrClosed   = errors.New("docstore: store closed")
)

// TimeLayout is the wire encoding for timestamp fields.
const TimeLayout = time.RFC3339Nano

// Sentinel is a special field value interpreted by the backend at write
// time rather than stored verbatim.
type Sentinel struct{ name string }

var (
	// Delete removes the field from the document.
	Delete = Sentinel{"delete"}
	// ServerTimestamp is replaced by the backend's write-time instant.
	ServerTimestamp = Sentinel{"serverTimestamp"}
)

// Fields is a flat document body. Values survive a JSON round trip, so
// backends may hand back string/float64/bool for what was written.
type Fields map[string]any

type Document struct {
	ID     string
	Fields Fields
}

// String returns the named field as a string, or "" when absent or not
// a string.
func (d Document) String(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Time parses the named field as a TimeLayout timestamp. The zero time
// is returned when the field is absent or malformed.
func (d Document) Time(key string) time.Time {
	s, ok := d.Fields[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Filter is an equality condition on a single field.
type Filter struct {
	Field string
	Value any
}

type Query struct {
	Collection string
	Filters    []Filter
}

// NewQuery starts a query over a collection.
func NewQuery(collection string) Query {
	return Query{Collection: collection}
}

// Where appends an equality filter and returns the extended query.
func (q Query) Where(field string, value any) Query {
	out := q
	out.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: value})
	return out
}

// Matches reports whether the document satisfies every filter. Numeric
// values are compared after normalization since JSON decoding widens
// them to float64.
func (q Query) Matches(d Document) bool {
	for _, f := range q.Filters {
		v, ok := d.Fields[f.Field]
		if !ok {
			return false
		}
		if normalize(v) != normalize(f.Value) {
			return false
		}
	}
	return true
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// Handler receives batches of documents newly added to a subscribed
// query's result set, or a delivery error. A nil-batch call with a
// non-nil error carries no data; handlers must not retain the slice.
type Handler func(added []Document, err error)

// Subscription is a live query registration. Close releases it; the
// handler receives no further calls once Close returns.
type Subscription interface {
	Close() error
}

// Store is the opaque query/subscribe/write surface of the remote
// document database.
type Store interface {
	// Add writes a new document and returns its backend-assigned id.
	Add(ctx context.Context, collection string, fields Fields) (string, error)
	// Query runs a one-shot equality-filtered read.
	Query(ctx context.Context, q Query) ([]Document, error)
	// Update merges fields into an existing document. The Delete
	// sentinel removes a field.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Subscribe registers a live query. The current result set is
	// delivered as the first added batch, then incrementally.
	Subscribe(ctx context.Context, q Query, h Handler) (Subscription, error)
}
