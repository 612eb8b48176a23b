package userstore

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrTaken is returned by Register when the username already exists.
var ErrTaken = errors.New("username already taken")

// User is a registered dashboard account. The password digest never
// leaves the store.
type User struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists dashboard credentials.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to the configured backend, creates the schema if needed,
// and seeds the default admin account when it is missing.
func Open(ctx context.Context, driver, dsn, adminUser, adminPass string, logger *slog.Logger) (*Store, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open user db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping user db: %w", err)
	}
	if _, err := db.ExecContext(ctx, dialect.CreateSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create users schema: %w", err)
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.seedAdmin(ctx, adminUser, adminPass); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) seedAdmin(ctx context.Context, user, pass string) error {
	if user == "" {
		return nil
	}
	err := s.register(ctx, user, user+"@seismicguard.local", pass, true)
	if errors.Is(err, ErrTaken) {
		return nil
	}
	if err == nil {
		s.logger.Info("seeded admin account", "user", user)
	}
	return err
}

// Register creates a new non-admin account. Returns ErrTaken when the
// username is already registered.
func (s *Store) Register(ctx context.Context, username, email, password string) error {
	return s.register(ctx, username, email, password, false)
}

func (s *Store) register(ctx context.Context, username, email, password string, isAdmin bool) error {
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}

	query := fmt.Sprintf(
		"INSERT INTO users (username, email, digest, is_admin, created_at) VALUES (%s, %s, %s, %s, %s)",
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.Placeholder(4), s.dialect.Placeholder(5),
	)
	_, err := s.db.ExecContext(ctx, query,
		username, email, digest(password), isAdmin, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		if exists, lookupErr := s.exists(ctx, username); lookupErr == nil && exists {
			return ErrTaken
		}
		return fmt.Errorf("register user: %w", err)
	}
	return nil
}

func (s *Store) exists(ctx context.Context, username string) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM users WHERE username = %s", s.dialect.Placeholder(1))
	var n int
	if err := s.db.QueryRowContext(ctx, query, username).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Authenticate checks the password against the stored digest. On success
// it returns the account; ok is false on unknown user or wrong password.
func (s *Store) Authenticate(ctx context.Context, username, password string) (User, bool, error) {
	query := fmt.Sprintf(
		"SELECT username, email, digest, is_admin, created_at FROM users WHERE username = %s",
		s.dialect.Placeholder(1),
	)
	var (
		u       User
		stored  string
		created string
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(&u.Username, &u.Email, &stored, &u.IsAdmin, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("authenticate user: %w", err)
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(digest(password))) != 1 {
		return User{}, false, nil
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return u, true, nil
}

// List returns every registered account, newest first. Admin endpoint only.
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT username, email, is_admin, created_at FROM users ORDER BY created_at DESC, username")
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var (
			u       User
			created string
		)
		if err := rows.Scan(&u.Username, &u.Email, &u.IsAdmin, &created); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.CreatedAt, _ = time.Parse(time.RFC3339, created)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
