// Package gateway implements the docstore interface over a websocket
// connection to a document gateway. Requests and responses are JSON
// frames correlated by id; subscription deliveries arrive as unsolicited
// frames carrying the subscription id.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alonc7/chatapp-go/internal/docstore"
)

// Frame ops.
const (
	opAdd         = "add"
	opQuery       = "query"
	opUpdate      = "update"
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
)

type wireDoc struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

type request struct {
	Op         string         `json:"op"`
	ID         int64          `json:"id"`
	Collection string         `json:"collection,omitempty"`
	Doc        string         `json:"doc,omitempty"`
	Fields     map[string]any `json:"fields,omitempty"`
	// Sentinels do not survive JSON; they travel as field-name lists.
	Delete   []string       `json:"delete,omitempty"`
	ServerTS []string       `json:"server_ts,omitempty"`
	Filter   map[string]any `json:"filter,omitempty"`
	Sub      string         `json:"sub,omitempty"`
}

type frame struct {
	ID    int64     `json:"id,omitempty"`
	OK    bool      `json:"ok,omitempty"`
	Error string    `json:"error,omitempty"`
	Doc   string    `json:"doc,omitempty"`
	Docs  []wireDoc `json:"docs,omitempty"`
	Sub   string    `json:"sub,omitempty"`
	Added []wireDoc `json:"added,omitempty"`
}

type Options struct {
	// OpTimeout bounds a single request round trip.
	OpTimeout time.Duration
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration
	// QueueSize bounds the outbound frame queue.
	QueueSize int
}

func (o Options) withDefaults() Options {
	if o.OpTimeout <= 0 {
		o.OpTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	return o
}

type Client struct {
	ws   *websocket.Conn
	opts Options

	out    chan []byte
	closed chan struct{}

	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan frame
	subs    map[string]docstore.Handler
	// backlog holds deliveries that raced ahead of handler
	// registration; Subscribe drains it.
	backlog map[string][]frame
	closing bool
}

const backlogLimit = 64

// Dial connects to the gateway at url (ws:// or wss://).
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("gateway: dial %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		opts:    opts,
		out:     make(chan []byte, opts.QueueSize),
		closed:  make(chan struct{}),
		pending: make(map[int64]chan frame),
		subs:    make(map[string]docstore.Handler),
		backlog: make(map[string][]frame),
	}
	go c.readLoop()
	go c.writeLoop()
	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.mu.Unlock()
	close(c.closed)
	return c.ws.Close()
}

func (c *Client) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			continue
		}
		switch {
		case f.ID != 0:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case f.Sub != "":
			c.mu.Lock()
			h := c.subs[f.Sub]
			if h == nil && !c.closing {
				if len(c.backlog[f.Sub]) < backlogLimit {
					c.backlog[f.Sub] = append(c.backlog[f.Sub], f)
				}
				c.mu.Unlock()
				break
			}
			c.mu.Unlock()
			if h == nil {
				break
			}
			dispatch(h, f)
		}
	}
}

func (c *Client) writeLoop() {
	for {
		select {
		case <-c.closed:
			return
		case b := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.fail(err)
				return
			}
		}
	}
}

// fail tears the connection down: pending requests get the error,
// subscription handlers get one final error delivery.
func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.closing {
		// plain close, not a transport failure
		err = docstore.ErrClosed
	}
	pending := c.pending
	subs := c.subs
	c.pending = make(map[int64]chan frame)
	c.subs = make(map[string]docstore.Handler)
	c.backlog = make(map[string][]frame)
	wasClosing := c.closing
	c.closing = true
	c.mu.Unlock()

	if !wasClosing {
		close(c.closed)
		_ = c.ws.Close()
	}
	for _, ch := range pending {
		ch <- frame{Error: err.Error()}
	}
	if !errors.Is(err, docstore.ErrClosed) {
		for _, h := range subs {
			h(nil, err)
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, req request) (frame, error) {
	req.ID = c.nextID.Add(1)
	ch := make(chan frame, 1)

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return frame{}, docstore.ErrClosed
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	drop := func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}

	b, err := json.Marshal(req)
	if err != nil {
		drop()
		return frame{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.OpTimeout)
	defer cancel()

	select {
	case c.out <- b:
	case <-c.closed:
		drop()
		return frame{}, docstore.ErrClosed
	case <-ctx.Done():
		drop()
		return frame{}, ctx.Err()
	}

	select {
	case f := <-ch:
		if f.Error != "" {
			return frame{}, errors.New(f.Error)
		}
		return f, nil
	case <-c.closed:
		drop()
		return frame{}, docstore.ErrClosed
	case <-ctx.Done():
		drop()
		return frame{}, ctx.Err()
	}
}

// splitFields separates sentinel values from plain ones for the wire.
func splitFields(fields docstore.Fields) (plain map[string]any, deletes, serverTS []string) {
	plain = make(map[string]any, len(fields))
	for k, v := range fields {
		switch v {
		case docstore.Delete:
			deletes = append(deletes, k)
		case docstore.ServerTimestamp:
			serverTS = append(serverTS, k)
		default:
			plain[k] = v
		}
	}
	return plain, deletes, serverTS
}

func filterMap(q docstore.Query) map[string]any {
	if len(q.Filters) == 0 {
		return nil
	}
	m := make(map[string]any, len(q.Filters))
	for _, f := range q.Filters {
		m[f.Field] = f.Value
	}
	return m
}

func dispatch(h docstore.Handler, f frame) {
	if f.Error != "" {
		h(nil, errors.New(f.Error))
		return
	}
	if len(f.Added) > 0 {
		h(decodeDocs(f.Added), nil)
	}
}

func decodeDocs(in []wireDoc) []docstore.Document {
	out := make([]docstore.Document, 0, len(in))
	for _, d := range in {
		out = append(out, docstore.Document{ID: d.ID, Fields: docstore.Fields(d.Fields)})
	}
	return out
}

func (c *Client) Add(ctx context.Context, collection string, fields docstore.Fields) (string, error) {
	plain, deletes, serverTS := splitFields(fields)
	_ = deletes // Delete on a new document is a no-op
	f, err := c.roundTrip(ctx, request{
		Op:         opAdd,
		Collection: collection,
		Fields:     plain,
		ServerTS:   serverTS,
	})
	if err != nil {
		return "", err
	}
	return f.Doc, nil
}

func (c *Client) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	f, err := c.roundTrip(ctx, request{
		Op:         opQuery,
		Collection: q.Collection,
		Filter:     filterMap(q),
	})
	if err != nil {
		return nil, err
	}
	return decodeDocs(f.Docs), nil
}

func (c *Client) Update(ctx context.Context, collection, id string, fields docstore.Fields) error {
	plain, deletes, serverTS := splitFields(fields)
	_, err := c.roundTrip(ctx, request{
		Op:         opUpdate,
		Collection: collection,
		Doc:        id,
		Fields:     plain,
		Delete:     deletes,
		ServerTS:   serverTS,
	})
	return err
}

type subscription struct {
	c   *Client
	id  string
	one sync.Once
}

func (sub *subscription) Close() error {
	var err error
	sub.one.Do(func() {
		sub.c.mu.Lock()
		delete(sub.c.subs, sub.id)
		sub.c.mu.Unlock()
		ctx, cancel := context.WithTimeout(context.Background(), sub.c.opts.OpTimeout)
		defer cancel()
		_, err = sub.c.roundTrip(ctx, request{Op: opUnsubscribe, Sub: sub.id})
		if errors.Is(err, docstore.ErrClosed) {
			err = nil
		}
	})
	return err
}

// Subscribe registers a live query. The gateway delivers the current
// result set as the first added batch on the subscription frame stream.
func (c *Client) Subscribe(ctx context.Context, q docstore.Query, h docstore.Handler) (docstore.Subscription, error) {
	f, err := c.roundTrip(ctx, request{
		Op:         opSubscribe,
		Collection: q.Collection,
		Filter:     filterMap(q),
	})
	if err != nil {
		return nil, err
	}
	if f.Sub == "" {
		return nil, errors.New("gateway: subscribe response missing sub id")
	}
	c.mu.Lock()
	c.subs[f.Sub] = h
	queued := c.backlog[f.Sub]
	delete(c.backlog, f.Sub)
	c.mu.Unlock()
	for _, qf := range queued {
		dispatch(h, qf)
	}
	return &subscription{c: c, id: f.Sub}, nil
}
