package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// INFO: https://github.com/go-redis/redis/issues/1029
		goleak.IgnoreTopFunction(
			"github.com/go-redis/redis/v8/internal/pool.(*ConnPool).reaper",
		),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestSessionManager(t *testing.T) (*SessionManager, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := NewSessionManager(NewMemorySessionStore(0), SessionTTL)
	m.NowFunc = clock.Now
	return m, clock
}

func TestSessionManager_CreateAndResolve(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)

	id, err := m.Create(ctx, 7, "admin")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	identity, err := m.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: 7, Username: "admin"}, identity)

	otherID, err := m.Create(ctx, 7, "admin")
	require.NoError(t, err)
	assert.NotEqual(t, id, otherID)
}

func TestSessionManager_ResolveUnknown(t *testing.T) {
	m, _ := newTestSessionManager(t)

	identity, err := m.Resolve(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, identity)

	identity, err = m.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Nil(t, identity)
}

func TestSessionManager_Destroy(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestSessionManager(t)

	id, err := m.Create(ctx, 1, "admin")
	require.NoError(t, err)

	require.NoError(t, m.Destroy(ctx, id))
	_, err = m.Resolve(ctx, id)
	assert.ErrorIs(t, err, ErrNoSession)

	// idempotent
	assert.NoError(t, m.Destroy(ctx, id))
	assert.NoError(t, m.Destroy(ctx, ""))
}

func TestSessionManager_Expiry(t *testing.T) {
	ctx := context.Background()
	store := &recordingStore{inner: NewMemorySessionStore(0)}
	clock := &testClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	m := NewSessionManager(store, SessionTTL)
	m.NowFunc = clock.Now

	id, err := m.Create(ctx, 1, "admin")
	require.NoError(t, err)
	assert.Equal(t, SessionTTL, store.savedTTL)

	clock.now = clock.now.Add(SessionTTL - time.Second)
	_, err = m.Resolve(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, store.deleted)

	clock.now = clock.now.Add(time.Second)
	_, err = m.Resolve(ctx, id)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, []string{id}, store.deleted)

	// the expired record is gone, not just hidden
	_, err = store.inner.Load(ctx, id)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionManager_Errors(t *testing.T) {
	ctx := context.Background()
	storeErr := errors.New("store down")

	m := NewSessionManager(&failingStore{err: storeErr}, 0)
	assert.Equal(t, SessionTTL, m.TTL())

	_, err := m.Create(ctx, 1, "admin")
	assert.ErrorIs(t, err, storeErr)

	_, err = m.Resolve(ctx, "some-id")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrNoSession)

	assert.ErrorIs(t, m.Destroy(ctx, "some-id"), storeErr)

	m = NewSessionManager(NewMemorySessionStore(0), SessionTTL)
	m.RandStringFunc = func(int) (string, error) {
		return "", errors.New("no entropy")
	}
	_, err = m.Create(ctx, 1, "admin")
	assert.EqualError(t, err, "generate session id: no entropy")
}

type recordingStore struct {
	inner    SessionStore
	savedTTL time.Duration
	deleted  []string
}

func (s *recordingStore) Save(ctx context.Context, session *Session, ttl time.Duration) error {
	s.savedTTL = ttl
	return s.inner.Save(ctx, session, ttl)
}

func (s *recordingStore) Load(ctx context.Context, id string) (*Session, error) {
	return s.inner.Load(ctx, id)
}

func (s *recordingStore) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return s.inner.Delete(ctx, id)
}

type failingStore struct {
	err error
}

func (s *failingStore) Save(context.Context, *Session, time.Duration) error {
	return s.err
}

func (s *failingStore) Load(context.Context, string) (*Session, error) {
	return nil, s.err
}

func (s *failingStore) Delete(context.Context, string) error {
	return s.err
}
