package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

type SQLiteStore struct {
	db *sql.DB
	// ability to inject the clock used for created_at (for unit testing)
	NowFunc func() time.Time
}

// NewSQLiteStore opens (or creates) the database file at path.
// Use ":memory:" for a throwaway in-process database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite [%s]: %w", path, err)
	}

	// single writer; also keeps an in-memory database on one connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite [%s]: %w", path, err)
	}

	log.Debugf("sqlite store opened: %s", path)

	return NewSQLiteStoreWithDB(db), nil
}

func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{
		db:      db,
		NowFunc: time.Now,
	}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InitSchema(ctx context.Context) error {
	const createAdminUsers = `
		CREATE TABLE IF NOT EXISTS admin_users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`
	const createContactMessages = `
		CREATE TABLE IF NOT EXISTS contact_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT,
			message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`

	if _, err := s.db.ExecContext(ctx, createAdminUsers); err != nil {
		return storageErr("create admin_users table", err)
	}
	if _, err := s.db.ExecContext(ctx, createContactMessages); err != nil {
		return storageErr("create contact_messages table", err)
	}

	return nil
}

func (s *SQLiteStore) SeedDefaultAdmin(ctx context.Context, username, passwordHash string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`
			INSERT INTO admin_users (username, password_hash, created_at)
			SELECT ?, ?, ?
			WHERE NOT EXISTS (SELECT 1 FROM admin_users)
			ON CONFLICT (username) DO NOTHING;`,
		username, passwordHash, s.timestamp(),
	)
	if err != nil {
		return false, storageErr("seed default admin", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, storageErr("seed default admin, rows affected", err)
	}

	return affected > 0, nil
}

func (s *SQLiteStore) FindAdminByUsername(ctx context.Context, username string) (*AdminUser, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash, created_at FROM admin_users WHERE username = ?;`,
		username,
	)

	var admin AdminUser
	var createdAt sqliteTime
	if err := row.Scan(&admin.ID, &admin.Username, &admin.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, storageErr("find admin", err)
	}
	admin.CreatedAt = createdAt.Time

	return &admin, nil
}

func (s *SQLiteStore) CreateAdmin(ctx context.Context, username, passwordHash string) (*AdminUser, error) {
	now := s.NowFunc().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO admin_users (username, password_hash, created_at) VALUES (?, ?, ?);`,
		username, passwordHash, now.Format(sqliteTimeLayout),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, conflictErr(fmt.Sprintf("create admin [%s]", username), err)
		}
		return nil, storageErr("create admin", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, storageErr("create admin, last insert id", err)
	}

	return &AdminUser{
		ID:           int(id),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now.Truncate(time.Microsecond),
	}, nil
}

func (s *SQLiteStore) InsertContactMessage(ctx context.Context, name, email, phone, message string) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO contact_messages (name, email, phone, message, created_at) VALUES (?, ?, ?, ?, ?);`,
		name, email, phone, message, s.timestamp(),
	)
	if err != nil {
		return -1, storageErr("insert contact message", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return -1, storageErr("insert contact message, last insert id", err)
	}

	return int(id), nil
}

func (s *SQLiteStore) ListContactMessages(ctx context.Context) ([]*ContactMessage, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`
			SELECT id, name, email, COALESCE(phone, ''), COALESCE(message, ''), created_at
			FROM contact_messages
			ORDER BY created_at DESC, id DESC;`,
	)
	if err != nil {
		return nil, storageErr("list contact messages", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Warnf("list contact messages, close rows: %s", err)
		}
	}()

	messages := []*ContactMessage{}
	for rows.Next() {
		var m ContactMessage
		var createdAt sqliteTime
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &createdAt); err != nil {
			return nil, storageErr("list contact messages, scan", err)
		}
		m.CreatedAt = createdAt.Time
		messages = append(messages, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, storageErr("list contact messages, rows", err)
	}

	return messages, nil
}

func (s *SQLiteStore) timestamp() string {
	return s.NowFunc().UTC().Format(sqliteTimeLayout)
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// sqliteTime scans DATETIME columns, which the driver may hand over either
// already parsed or as the stored text.
type sqliteTime struct {
	time.Time
}

var sqliteTimeLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *sqliteTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	default:
		return fmt.Errorf("unsupported created_at type %T", src)
	}
}

func (t *sqliteTime) parse(value string) error {
	for _, layout := range sqliteTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparsable created_at value [%s]", value)
}
