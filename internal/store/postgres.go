package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/contactdesk/internal/telemetry/tracing"
	"github.com/2beens/contactdesk/pkg"
)

// manual caching of statements not needed:
// https://github.com/jackc/pgx/wiki/Automatic-Prepared-Statement-Caching

type PsqlStore struct {
	db *pgxpool.Pool
	// ability to inject the clock used for created_at (for unit and integration testing)
	NowFunc func() time.Time
}

func NewPsqlStore(db *pgxpool.Pool) *PsqlStore {
	return &PsqlStore{
		db:      db,
		NowFunc: time.Now,
	}
}

// Close closes the underlying pool (blocking).
func (s *PsqlStore) Close() error {
	s.db.Close()
	return nil
}

func (s *PsqlStore) InitSchema(ctx context.Context) error {
	ctx, span := tracing.GlobalTracer.Start(ctx, "psqlStore.InitSchema")
	defer span.End()

	const createAdminUsers = `
		CREATE TABLE IF NOT EXISTS admin_users (
			id SERIAL PRIMARY KEY,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`
	const createContactMessages = `
		CREATE TABLE IF NOT EXISTS contact_messages (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`

	if _, err := s.db.Exec(ctx, createAdminUsers); err != nil {
		return storageErr("create admin_users table", err)
	}
	if _, err := s.db.Exec(ctx, createContactMessages); err != nil {
		return storageErr("create contact_messages table", err)
	}

	return nil
}

func (s *PsqlStore) SeedDefaultAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "psqlStore.SeedDefaultAdmin")
	defer span.End()

	tag, err := s.db.Exec(
		ctx,
		`
			INSERT INTO admin_users (username, password_hash, created_at)
			SELECT $1::text, $2::text, $3::timestamptz
			WHERE NOT EXISTS (SELECT 1 FROM admin_users)
			ON CONFLICT (username) DO NOTHING;`,
		username, passwordHash, s.NowFunc(),
	)
	if err != nil {
		return false, storageErr("seed default admin", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (s *PsqlStore) FindAdminByUsername(ctx context.Context, username string) (*AdminUser, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "psqlStore.FindAdminByUsername")
	defer span.End()

	var admin AdminUser
	err := s.db.QueryRow(
		ctx,
		`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = $1;`,
		username,
	).Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, storageErr("find admin", err)
	}

	return &admin, nil
}

func (s *PsqlStore) CreateAdmin(ctx context.Context, username, passwordHash string) (*AdminUser, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "psqlStore.CreateAdmin")
	defer span.End()

	admin := &AdminUser{
		Username:     username,
		PasswordHash: passwordHash,
	}
	err := s.db.QueryRow(
		ctx,
		`INSERT INTO admin_users (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING id, created_at;`,
		username, passwordHash, s.NowFunc(),
	).Scan(&admin.ID, &admin.CreatedAt)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, conflictErr(fmt.Sprintf("create admin [%s]", username), err)
		}
		return nil, storageErr("create admin", err)
	}

	return admin, nil
}

func (s *PsqlStore) InsertContactMessage(ctx context.Context, name, email, phone, message string) (int, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "psqlStore.InsertContactMessage")
	defer span.End()

	var id int
	err := s.db.QueryRow(
		ctx,
		`
			INSERT INTO contact_messages (name, email, phone, message, created_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id;`,
		name, email, phone, message, s.NowFunc(),
	).Scan(&id)
	if err != nil {
		return -1, storageErr("insert contact message", err)
	}

	span.SetAttributes(attribute.Int("id", id))

	return id, nil
}

func (s *PsqlStore) ListContactMessages(ctx context.Context) ([]*ContactMessage, error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "psqlStore.ListContactMessages")
	defer span.End()

	rows, err := s.db.Query(
		ctx,
		`
			SELECT id, name, email, phone, message, created_at
			FROM contact_messages
			ORDER BY created_at DESC, id DESC;`,
	)
	if err != nil {
		return nil, storageErr("list contact messages", err)
	}
	defer rows.Close()

	messages := []*ContactMessage{}
	for rows.Next() {
		var m ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.CreatedAt); err != nil {
			return nil, storageErr("list contact messages, scan", err)
		}
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("list contact messages, rows", err)
	}

	span.SetAttributes(attribute.Int("count", len(messages)))

	return messages, nil
}
