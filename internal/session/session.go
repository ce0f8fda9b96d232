// Package session owns the account lifecycle: registration, sign-in,
// sign-out and push-token persistence. Credentials are bcrypt-hashed;
// the plaintext password is never written to or queried against the
// remote store.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/alonc7/chatapp-go/internal/docstore"
	"github.com/alonc7/chatapp-go/internal/metrics"
	"github.com/alonc7/chatapp-go/internal/model"
	"github.com/alonc7/chatapp-go/internal/prefs"
	"github.com/alonc7/chatapp-go/internal/push"
)

// Preference keys for the locally held session state.
const (
	KeyIsSignedIn = "isSignedIn"
	KeyUserID     = "userId"
	KeyName       = "name"
	KeyImage      = "image"
)

var (
	ErrInvalidCredentials = errors.New("session: invalid credentials")
	ErrEmailTaken         = errors.New("session: email already registered")
	ErrNotSignedIn        = errors.New("session: not signed in")
)

type Manager struct {
	store docstore.Store
	prefs *prefs.Store
	log   *zap.Logger
}

func NewManager(store docstore.Store, p *prefs.Store, log *zap.Logger) *Manager {
	return &Manager{store: store, prefs: p, log: log}
}

func (m *Manager) SignedIn() bool { return m.prefs.GetBool(KeyIsSignedIn) }

// CurrentUser reads the locally persisted identity.
func (m *Manager) CurrentUser() (id, name, image string) {
	return m.prefs.GetString(KeyUserID), m.prefs.GetString(KeyName), m.prefs.GetString(KeyImage)
}

// SignUp registers a new profile and signs it in. image is the already
// base64-encoded avatar (may be empty).
func (m *Manager) SignUp(ctx context.Context, name, email, password, image string) (model.User, error) {
	existing, err := m.store.Query(ctx, docstore.NewQuery(model.CollectionUsers).Where(model.KeyEmail, email))
	if err != nil {
		return model.User{}, err
	}
	if len(existing) > 0 {
		return model.User{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, err
	}
	id, err := m.store.Add(ctx, model.CollectionUsers, docstore.Fields{
		model.KeyName:         name,
		model.KeyEmail:        email,
		model.KeyPasswordHash: string(hash),
		model.KeyImage:        image,
	})
	if err != nil {
		return model.User{}, err
	}
	u := model.User{ID: id, Name: name, Email: email, Image: image}
	if err := m.writeSession(u); err != nil {
		return model.User{}, err
	}
	m.log.Info("signed up", zap.String("user_id", id))
	return u, nil
}

// SignIn looks the profile up by email only and verifies the password
// locally against the stored hash. On failure no session state is
// written.
func (m *Manager) SignIn(ctx context.Context, email, password string) (model.User, error) {
	docs, err := m.store.Query(ctx, docstore.NewQuery(model.CollectionUsers).Where(model.KeyEmail, email))
	if err != nil {
		return model.User{}, err
	}
	if len(docs) == 0 {
		metrics.SignInFail.Inc()
		return model.User{}, ErrInvalidCredentials
	}
	u := model.UserFromDocument(docs[0])
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		metrics.SignInFail.Inc()
		m.log.Warn("sign-in rejected", zap.String("email", email))
		return model.User{}, ErrInvalidCredentials
	}
	if err := m.writeSession(u); err != nil {
		return model.User{}, err
	}
	m.log.Info("signed in", zap.String("user_id", u.ID))
	return u, nil
}

// SignOut removes the push token from the profile document, then clears
// local session state. If the remote write fails the session is kept so
// the user stays signed in.
func (m *Manager) SignOut(ctx context.Context) error {
	id := m.prefs.GetString(KeyUserID)
	if id == "" {
		return ErrNotSignedIn
	}
	if err := m.store.Update(ctx, model.CollectionUsers, id, docstore.Fields{
		model.KeyPushToken: docstore.Delete,
	}); err != nil {
		m.log.Warn("sign-out token removal failed", zap.String("user_id", id), zap.Error(err))
		return fmt.Errorf("sign out: %w", err)
	}
	if err := m.prefs.Clear(); err != nil {
		return err
	}
	m.log.Info("signed out", zap.String("user_id", id))
	return nil
}

// RegisterPushToken persists the device token on the current profile.
func (m *Manager) RegisterPushToken(ctx context.Context, provider push.TokenProvider) error {
	id := m.prefs.GetString(KeyUserID)
	if id == "" {
		return ErrNotSignedIn
	}
	tok, err := provider.Token(ctx)
	if err != nil {
		return err
	}
	return m.store.Update(ctx, model.CollectionUsers, id, docstore.Fields{
		model.KeyPushToken: tok,
	})
}

func (m *Manager) writeSession(u model.User) error {
	if err := m.prefs.PutBool(KeyIsSignedIn, true); err != nil {
		return err
	}
	if err := m.prefs.PutString(KeyUserID, u.ID); err != nil {
		return err
	}
	if err := m.prefs.PutString(KeyName, u.Name); err != nil {
		return err
	}
	return m.prefs.PutString(KeyImage, u.Image)
}

// LoadAvatar reads an image file and returns it base64-encoded, the
// form profiles store avatars in.
func LoadAvatar(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
