// Package feed maintains the ordered message list behind a chat screen.
// Live subscriptions deliver unordered batches of added documents; the
// merger folds them into one chronological sequence and tells the UI
// how to redraw.
package feed

import (
	"sort"

	"github.com/alonc7/chatapp-go/internal/model"
)

type UpdateKind int

const (
	// Refresh means the whole list must be redrawn (first batch).
	Refresh UpdateKind = iota
	// Append means Count items were added starting at Start.
	Append
)

type Update struct {
	Kind  UpdateKind
	Start int
	Count int
	// ScrollToEnd asks the UI to scroll to the last item.
	ScrollToEnd bool
}

// Merger is not safe for concurrent use; batches must be applied from a
// single consumer, matching the one-callback-path threading model.
type Merger struct {
	msgs []model.ChatMessage
	seen map[string]struct{}
}

func NewMerger() *Merger {
	return &Merger{seen: make(map[string]struct{})}
}

// Apply folds a batch of newly-added messages into the list. Delivery
// is assumed at-least-once, so messages whose id was already applied
// are dropped. The list is re-sorted by the raw timestamp instant;
// the sort is stable, so equal stamps keep arrival order and re-sorting
// an already-sorted list is a no-op.
//
// The second return is false when the batch contained nothing new, in
// which case the UI state must be left untouched.
func (m *Merger) Apply(added []model.ChatMessage) (Update, bool) {
	countBefore := len(m.msgs)

	appended := 0
	for _, msg := range added {
		if msg.ID != "" {
			if _, dup := m.seen[msg.ID]; dup {
				continue
			}
			m.seen[msg.ID] = struct{}{}
		}
		m.msgs = append(m.msgs, msg)
		appended++
	}
	if appended == 0 {
		return Update{}, false
	}

	sort.SliceStable(m.msgs, func(i, j int) bool {
		return m.msgs[i].Timestamp.Before(m.msgs[j].Timestamp)
	})

	if countBefore == 0 {
		return Update{Kind: Refresh, Count: appended}, true
	}
	return Update{Kind: Append, Start: countBefore, Count: appended, ScrollToEnd: true}, true
}

func (m *Merger) Len() int { return len(m.msgs) }

// Messages returns a copy of the current ordered list.
func (m *Merger) Messages() []model.ChatMessage {
	out := make([]model.ChatMessage, len(m.msgs))
	copy(out, m.msgs)
	return out
}
