package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

var (
	ErrAdminNotFound = errors.New("admin user not found")
	ErrConflict      = errors.New("conflict")
	ErrStorage       = errors.New("storage failure")
)

type AdminUser struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type ContactMessage struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PsqlStore)(nil)

// Store owns the admin_users and contact_messages tables.
// All failures of the underlying engine are wrapped with ErrStorage.
type Store interface {
	InitSchema(ctx context.Context) error
	// SeedDefaultAdmin creates the given admin only if no admin exists yet.
	// It reports whether a row was created.
	SeedDefaultAdmin(ctx context.Context, username, passwordHash string) (bool, error)
	FindAdminByUsername(ctx context.Context, username string) (*AdminUser, error)
	CreateAdmin(ctx context.Context, username, passwordHash string) (*AdminUser, error)
	InsertContactMessage(ctx context.Context, name, email, phone, message string) (int, error)
	// ListContactMessages returns all messages, approximately newest first.
	ListContactMessages(ctx context.Context) ([]*ContactMessage, error)
	Close() error
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

func conflictErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrConflict, err)
}
