// Package push supplies the device push token that gets persisted on
// the user's profile document. Only token acquisition lives here; push
// message handling belongs to the messaging backend.
package push

import (
	"context"
	"crypto/rand"
	"io"

	"github.com/alonc7/chatapp-go/internal/prefs"
)

// TokenProvider yields the opaque device token used by the messaging
// backend to route notifications.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

const tokenLen = 48

const prefsKeyDeviceToken = "deviceToken"

// DeviceTokens issues a stable per-device token: generated once, cached
// in the preference store, reused across runs.
type DeviceTokens struct {
	Prefs *prefs.Store
}

func (d *DeviceTokens) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if tok := d.Prefs.GetString(prefsKeyDeviceToken); tok != "" {
		return tok, nil
	}
	tok, err := randomAlphaNum(tokenLen)
	if err != nil {
		return "", err
	}
	if err := d.Prefs.PutString(prefsKeyDeviceToken, tok); err != nil {
		return "", err
	}
	return tok, nil
}

func randomAlphaNum(n int) (string, error) {
	const letters = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	for i := 0; i < n; i++ {
		buf[i] = letters[int(buf[i])%len(letters)]
	}
	return string(buf), nil
}
