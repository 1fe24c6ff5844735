package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/contactdesk/pkg"
)

const (
	SessionTTL     = 8 * time.Hour
	sessionIDBytes = 32
)

var ErrNoSession = errors.New("no session")

// Session is the server side record behind a session cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is what an authenticated request knows about its admin.
type Identity struct {
	UserID   int
	Username string
}

// SessionStore is a key-value store for sessions. Load returns ErrNoSession
// when there is no record for the given id.
type SessionStore interface {
	Save(ctx context.Context, session *Session, ttl time.Duration) error
	Load(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type SessionManager struct {
	store SessionStore
	ttl   time.Duration

	// ability to inject id generator and clock (for unit and dev testing)
	RandStringFunc func(n int) (string, error)
	NowFunc        func() time.Time
}

func NewSessionManager(store SessionStore, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = SessionTTL
	}
	return &SessionManager{
		store:          store,
		ttl:            ttl,
		RandStringFunc: pkg.GenerateRandomString,
		NowFunc:        time.Now,
	}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

func (m *SessionManager) Create(ctx context.Context, userID int, username string) (string, error) {
	id, err := m.RandStringFunc(sessionIDBytes)
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}

	session := &Session{
		ID:        id,
		UserID:    userID,
		Username:  username,
		CreatedAt: m.NowFunc(),
	}
	if err := m.store.Save(ctx, session, m.ttl); err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}

	return id, nil
}

// Resolve returns the identity behind the session id. Sessions older than
// the lifetime are removed here, on access.
func (m *SessionManager) Resolve(ctx context.Context, id string) (*Identity, error) {
	if id == "" {
		return nil, ErrNoSession
	}

	session, err := m.store.Load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if !m.NowFunc().Before(session.CreatedAt.Add(m.ttl)) {
		if err := m.store.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete expired session: %w", err)
		}
		return nil, ErrNoSession
	}

	return &Identity{
		UserID:   session.UserID,
		Username: session.Username,
	}, nil
}

// Destroy removes the session. Destroying a missing session is not an error.
func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
