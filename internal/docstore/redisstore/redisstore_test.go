package redisstore

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/alonc7/chatapp-go/internal/docstore"
)

func TestKeyLayout(t *testing.T) {
	if got := docKey("chat", "42"); got != "doc:chat:42" {
		t.Fatalf("docKey = %q", got)
	}
	if got := colKey("chat"); got != "col:chat" {
		t.Fatalf("colKey = %q", got)
	}
	if got := channel("users"); got != "docs:users" {
		t.Fatalf("channel = %q", got)
	}
}

func TestResolveSentinels(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out := resolve(docstore.Fields{
		"message":   "hi",
		"timestamp": docstore.ServerTimestamp,
		"gone":      docstore.Delete,
	}, at)

	if out["message"] != "hi" {
		t.Fatalf("plain field lost: %v", out)
	}
	if out["timestamp"] != at.Format(docstore.TimeLayout) {
		t.Fatalf("timestamp = %v", out["timestamp"])
	}
	if _, ok := out["gone"]; ok {
		t.Fatalf("Delete sentinel written to new document")
	}
}

func TestChangeEventRoundTrip(t *testing.T) {
	b, err := json.Marshal(changeEvent{ID: "7", Fields: docstore.Fields{"senderId": "u1"}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var evt changeEvent
	if err := json.Unmarshal(b, &evt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if evt.ID != "7" || evt.Fields["senderId"] != "u1" {
		t.Fatalf("round trip lost data: %+v", evt)
	}
}
