package ui

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alonc7/chatapp-go/internal/chat"
	"github.com/alonc7/chatapp-go/internal/feed"
	"github.com/alonc7/chatapp-go/internal/model"
)

// stampLayout is applied at render time only; ordering always uses the
// raw instant.
const stampLayout = "Jan 02, 2006 - 03:04 PM"

func (a *App) chatScreen(ctx context.Context, peer model.User) route {
	selfID, _, _ := a.Sessions.CurrentUser()

	conv, err := chat.Open(ctx, a.Store, a.Log, selfID, peer.ID)
	if err != nil {
		a.toast("Unable to open chat")
		a.Log.Warn("chat open failed", zap.String("peer", peer.ID), zap.Error(err))
		return routeHome
	}
	// Subscription released when the screen is left, whichever way.
	defer conv.Close()

	fmt.Fprintf(a.Out, "== chat with %s == (type a message, '/back' to leave)\n", peerName(peer))
	a.loading(true)

	for {
		select {
		case <-ctx.Done():
			return routeQuit

		case ev := <-conv.Updates():
			a.renderEvent(ev, selfID, peer)

		case line, open := <-a.lines:
			if !open {
				return routeQuit
			}
			if line == "/back" {
				return routeHome
			}
			if line == "" {
				continue
			}
			// Fire-and-forget: the message appears through the
			// subscription once stored; failures are logged only.
			if err := conv.Send(ctx, line); err != nil {
				a.Log.Warn("send failed", zap.Error(err))
			}
		}
	}
}

func (a *App) renderEvent(ev chat.Event, selfID string, peer model.User) {
	switch ev.Update.Kind {
	case feed.Refresh:
		for _, m := range ev.Messages {
			a.renderMessage(m, selfID, peer)
		}
	case feed.Append:
		for _, m := range ev.Messages[ev.Update.Start:] {
			a.renderMessage(m, selfID, peer)
		}
	}
}

func (a *App) renderMessage(m model.ChatMessage, selfID string, peer model.User) {
	who := peerName(peer)
	if m.SenderID == selfID {
		who = "me"
	}
	fmt.Fprintf(a.Out, "[%s] %s: %s\n", m.Timestamp.Local().Format(stampLayout), who, m.Text)
}
