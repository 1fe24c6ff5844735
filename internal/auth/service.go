package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/contactdesk/internal/store"
	"github.com/2beens/contactdesk/internal/telemetry/tracing"
	"github.com/2beens/contactdesk/pkg"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

type adminFinder interface {
	FindAdminByUsername(ctx context.Context, username string) (*store.AdminUser, error)
}

type Service struct {
	admins   adminFinder
	sessions *SessionManager
}

func NewService(admins adminFinder, sessions *SessionManager) *Service {
	return &Service{
		admins:   admins,
		sessions: sessions,
	}
}

// Authenticate checks the credentials against the stored admin accounts.
// Unknown usernames and wrong passwords both yield ErrInvalidCredentials,
// and both pay for one bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.AdminUser, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "authService.authenticate")
	defer span.End()

	admin, err := s.admins.FindAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrAdminNotFound) {
			pkg.CheckPasswordHash(password, getDummyHash())
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}

	if !pkg.CheckPasswordHash(password, admin.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return admin, nil
}

// Login authenticates the admin and opens a new session for them.
func (s *Service) Login(ctx context.Context, username, password string) (string, *store.AdminUser, error) {
	admin, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}

	sessionID, err := s.sessions.Create(ctx, admin.ID, admin.Username)
	if err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}

	return sessionID, admin, nil
}

func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Destroy(ctx, sessionID)
}

func getDummyHash() string {
	dummyHashOnce.Do(func() {
		hash, err := pkg.HashPassword("contactdesk-not-a-password")
		if err != nil {
			log.Errorf("auth service, generate dummy hash: %s", err)
			return
		}
		dummyHash = hash
	})
	return dummyHash
}
