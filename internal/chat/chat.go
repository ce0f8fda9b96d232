// Package chat runs one live conversation: a subscription on the
// canonical conversation id feeding the merger, and the send path.
package chat

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/alonc7/chatapp-go/internal/docstore"
	"github.com/alonc7/chatapp-go/internal/feed"
	"github.com/alonc7/chatapp-go/internal/metrics"
	"github.com/alonc7/chatapp-go/internal/model"
)

// Event is one UI update: how to redraw plus the list to draw from.
type Event struct {
	Update   feed.Update
	Messages []model.ChatMessage
}

type Conversation struct {
	store  docstore.Store
	log    *zap.Logger
	meID   string
	peerID string
	convID string

	mu     sync.Mutex
	merger *feed.Merger

	updates chan Event
	closed  chan struct{}
	once    sync.Once
	sub     docstore.Subscription
}

// Open subscribes to the conversation between me and peer. Messages
// written by either side carry the same conversation id, so one
// subscription sees both directions; the merger restores total order.
func Open(ctx context.Context, store docstore.Store, log *zap.Logger, meID, peerID string) (*Conversation, error) {
	c := &Conversation{
		store:   store,
		log:     log,
		meID:    meID,
		peerID:  peerID,
		convID:  model.ConversationID(meID, peerID),
		merger:  feed.NewMerger(),
		updates: make(chan Event, 16),
		closed:  make(chan struct{}),
	}
	q := docstore.NewQuery(model.CollectionChat).Where(model.KeyConversationID, c.convID)
	sub, err := store.Subscribe(ctx, q, c.onBatch)
	if err != nil {
		return nil, err
	}
	c.sub = sub
	metrics.ActiveSubscriptions.Inc()
	return c, nil
}

// onBatch may be called from any backend goroutine; the merger is
// guarded so the list still mutates on one path at a time. A delivery
// error changes nothing: prior list and UI state stay as they are.
func (c *Conversation) onBatch(added []docstore.Document, err error) {
	if err != nil {
		metrics.SubscribeErrors.Inc()
		c.log.Warn("subscription delivery failed", zap.String("conv_id", c.convID), zap.Error(err))
		return
	}
	msgs := make([]model.ChatMessage, 0, len(added))
	for _, d := range added {
		msgs = append(msgs, model.MessageFromDocument(d))
	}

	c.mu.Lock()
	up, ok := c.merger.Apply(msgs)
	if !ok {
		c.mu.Unlock()
		return
	}
	snapshot := c.merger.Messages()
	c.mu.Unlock()

	metrics.FeedBatches.Inc()
	if up.Kind == feed.Refresh {
		metrics.FeedRefreshes.Inc()
	} else {
		metrics.FeedAppends.Inc()
	}

	select {
	case c.updates <- Event{Update: up, Messages: snapshot}:
	case <-c.closed:
	}
}

// Updates delivers one Event per applied batch. Consumed by a single
// screen loop.
func (c *Conversation) Updates() <-chan Event { return c.updates }

// Messages returns the current ordered list.
func (c *Conversation) Messages() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.merger.Messages()
}

// Send writes the message with a backend-assigned timestamp. The write
// is fire-and-forget from the screen's point of view; the message shows
// up via the subscription once stored.
func (c *Conversation) Send(ctx context.Context, text string) error {
	_, err := c.store.Add(ctx, model.CollectionChat, docstore.Fields{
		model.KeySenderID:       c.meID,
		model.KeyReceiverID:     c.peerID,
		model.KeyConversationID: c.convID,
		model.KeyMessage:        text,
		model.KeyTimestamp:      docstore.ServerTimestamp,
	})
	if err != nil {
		metrics.MessageSendFail.Inc()
		c.log.Warn("message send failed", zap.String("conv_id", c.convID), zap.Error(err))
		return err
	}
	metrics.MessagesSent.Inc()
	return nil
}

// Close releases the subscription. Safe to call more than once.
func (c *Conversation) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		err = c.sub.Close()
		metrics.ActiveSubscriptions.Dec()
	})
	return err
}
