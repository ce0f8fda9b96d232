package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alonc7/chatapp-go/internal/docstore"
)

// testGateway is a minimal single-connection document gateway speaking
// the frame protocol: enough to exercise the client end to end.
func testGateway(t *testing.T) string {
	t.Helper()
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		type subState struct {
			collection string
			filter     map[string]any
		}
		docs := make(map[string][]wireDoc)
		subs := make(map[string]subState)
		nextDoc, nextSub := 0, 0

		write := func(f frame) {
			b, _ := json.Marshal(f)
			_ = ws.WriteMessage(websocket.TextMessage, b)
		}
		matches := func(filter map[string]any, fields map[string]any) bool {
			for k, v := range filter {
				if fields[k] != v {
					return false
				}
			}
			return true
		}

		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var req request
			if err := json.Unmarshal(data, &req); err != nil {
				continue
			}
			switch req.Op {
			case opAdd:
				fields := req.Fields
				if fields == nil {
					fields = make(map[string]any)
				}
				for _, k := range req.ServerTS {
					fields[k] = time.Now().UTC().Format(docstore.TimeLayout)
				}
				nextDoc++
				d := wireDoc{ID: fmt.Sprintf("d%d", nextDoc), Fields: fields}
				docs[req.Collection] = append(docs[req.Collection], d)
				write(frame{ID: req.ID, OK: true, Doc: d.ID})
				for sid, s := range subs {
					if s.collection == req.Collection && matches(s.filter, fields) {
						write(frame{Sub: sid, Added: []wireDoc{d}})
					}
				}
			case opQuery:
				var out []wireDoc
				for _, d := range docs[req.Collection] {
					if matches(req.Filter, d.Fields) {
						out = append(out, d)
					}
				}
				write(frame{ID: req.ID, OK: true, Docs: out})
			case opUpdate:
				found := false
				for _, d := range docs[req.Collection] {
					if d.ID == req.Doc {
						found = true
						for k, v := range req.Fields {
							d.Fields[k] = v
						}
						for _, k := range req.Delete {
							delete(d.Fields, k)
						}
					}
				}
				if !found {
					write(frame{ID: req.ID, Error: "not found"})
					break
				}
				write(frame{ID: req.ID, OK: true})
			case opSubscribe:
				nextSub++
				sid := fmt.Sprintf("s%d", nextSub)
				subs[sid] = subState{collection: req.Collection, filter: req.Filter}
				write(frame{ID: req.ID, OK: true, Sub: sid})
				var initial []wireDoc
				for _, d := range docs[req.Collection] {
					if matches(req.Filter, d.Fields) {
						initial = append(initial, d)
					}
				}
				if len(initial) > 0 {
					write(frame{Sub: sid, Added: initial})
				}
			case opUnsubscribe:
				delete(subs, req.Sub)
				write(frame{ID: req.ID, OK: true})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTest(t *testing.T) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, testGateway(t), Options{OpTimeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAddAndQueryRoundTrip(t *testing.T) {
	c := dialTest(t)
	ctx := context.Background()

	id, err := c.Add(ctx, "chat", docstore.Fields{
		"senderId":  "u1",
		"message":   "hi",
		"timestamp": docstore.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id == "" {
		t.Fatalf("no id returned")
	}

	docs, err := c.Query(ctx, docstore.NewQuery("chat").Where("senderId", "u1"))
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].String("message") != "hi" {
		t.Fatalf("unexpected result: %+v", docs)
	}
	if docs[0].Time("timestamp").IsZero() {
		t.Fatalf("server timestamp not assigned")
	}
}

func TestSubscribeDeliversSnapshotAndIncrements(t *testing.T) {
	c := dialTest(t)
	ctx := context.Background()

	if _, err := c.Add(ctx, "chat", docstore.Fields{"conversationId": "a:b", "message": "one"}); err != nil {
		t.Fatalf("seed add: %v", err)
	}

	batches := make(chan []docstore.Document, 8)
	sub, err := c.Subscribe(ctx, docstore.NewQuery("chat").Where("conversationId", "a:b"),
		func(added []docstore.Document, err error) {
			if err != nil {
				return
			}
			batches <- added
		})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	first := recvBatch(t, batches)
	if len(first) != 1 || first[0].String("message") != "one" {
		t.Fatalf("initial snapshot = %+v", first)
	}

	if _, err := c.Add(ctx, "chat", docstore.Fields{"conversationId": "a:b", "message": "two"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	second := recvBatch(t, batches)
	if len(second) != 1 || second[0].String("message") != "two" {
		t.Fatalf("incremental batch = %+v", second)
	}
}

func TestUnsubscribeStopsDeliveries(t *testing.T) {
	c := dialTest(t)
	ctx := context.Background()

	batches := make(chan []docstore.Document, 8)
	sub, err := c.Subscribe(ctx, docstore.NewQuery("chat"), func(added []docstore.Document, err error) {
		if err == nil {
			batches <- added
		}
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	if _, err := c.Add(ctx, "chat", docstore.Fields{"message": "after"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	select {
	case b := <-batches:
		t.Fatalf("delivery after unsubscribe: %+v", b)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestUpdateErrorsSurface(t *testing.T) {
	c := dialTest(t)
	if err := c.Update(context.Background(), "users", "missing", docstore.Fields{"pushToken": docstore.Delete}); err == nil {
		t.Fatalf("expected error for missing document")
	}
}

func TestClosedClientRejectsRequests(t *testing.T) {
	c := dialTest(t)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := c.Add(context.Background(), "chat", docstore.Fields{"m": "x"}); err != docstore.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func recvBatch(t *testing.T, ch chan []docstore.Document) []docstore.Document {
	t.Helper()
	select {
	case b := <-ch:
		return b
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for batch")
		return nil
	}
}
