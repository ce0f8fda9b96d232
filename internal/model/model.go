// Package model holds the two domain records and their document field
// mapping. Field keys match the backend collections: a user-profile
// collection and a flat message collection.
package model

import (
	"time"

	"github.com/alonc7/chatapp-go/internal/docstore"
)

// Collection names.
const (
	CollectionUsers = "users"
	CollectionChat  = "chat"
)

// User document field keys.
const (
	KeyName         = "name"
	KeyEmail        = "email"
	KeyPasswordHash = "passwordHash"
	KeyImage        = "image"
	KeyPushToken    = "pushToken"
)

// Chat document field keys.
const (
	KeySenderID       = "senderId"
	KeyReceiverID     = "receiverId"
	KeyConversationID = "conversationId"
	KeyMessage        = "message"
	KeyTimestamp      = "timestamp"
)

// User is a profile document. Image is a base64-encoded avatar.
// PasswordHash is a bcrypt hash; the plaintext never reaches the store.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Image        string
	PushToken    string
}

func UserFromDocument(d docstore.Document) User {
	return User{
		ID:           d.ID,
		Name:         d.String(KeyName),
		Email:        d.String(KeyEmail),
		PasswordHash: d.String(KeyPasswordHash),
		Image:        d.String(KeyImage),
		PushToken:    d.String(KeyPushToken),
	}
}

// ChatMessage is immutable once written; Timestamp is assigned by the
// backend at write time.
type ChatMessage struct {
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	Timestamp  time.Time
}

func MessageFromDocument(d docstore.Document) ChatMessage {
	return ChatMessage{
		ID:         d.ID,
		SenderID:   d.String(KeySenderID),
		ReceiverID: d.String(KeyReceiverID),
		Text:       d.String(KeyMessage),
		Timestamp:  d.Time(KeyTimestamp),
	}
}

// ConversationID is the canonical id for a one-to-one conversation: the
// ordered pair of participant ids. Both participants derive the same
// value, so a single subscription covers both directions.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}
