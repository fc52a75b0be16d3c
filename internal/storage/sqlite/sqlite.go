package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forum/internal/domain/models"
	"forum/internal/storage"
	"forum/migrations"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Rotation relies on single-statement conditional updates; one connection
	// keeps sqlite from reporting SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	return &Storage{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate() error {
	const op = "storage.sqlite.Migrate"

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("%s: source: %w", op, err)
	}

	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("%s: driver: %w", op, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: up: %w", op, err)
	}

	return nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.sqlite.SaveUser"

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, full_name, enrollment_number, pass_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, user.Email, user.FullName, user.EnrollmentNumber, user.PassHash, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) User(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.sqlite.User"

	row := s.db.QueryRowContext(ctx, selectUser+" WHERE email = ?", email)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx, selectUser+" WHERE id = ?", userID)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SaveRefreshToken overwrites the user's refresh token unconditionally.
func (s *Storage) SaveRefreshToken(ctx context.Context, userID string, token string) error {
	const op = "storage.sqlite.SaveRefreshToken"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ?",
		token, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrUserNotFound)
}

// SwapRefreshToken replaces oldToken with newToken only if oldToken is still
// the persisted value.
func (s *Storage) SwapRefreshToken(ctx context.Context, userID string, oldToken, newToken string) error {
	const op = "storage.sqlite.SwapRefreshToken"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_token = ?, updated_at = ? WHERE id = ? AND refresh_token = ?",
		newToken, time.Now().UTC(), userID, oldToken,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrTokenMismatch)
}

func (s *Storage) UnsetRefreshToken(ctx context.Context, userID string) error {
	const op = "storage.sqlite.UnsetRefreshToken"

	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_token = NULL, updated_at = ? WHERE id = ?",
		time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) UpdatePassword(ctx context.Context, userID string, passHash []byte) error {
	const op = "storage.sqlite.UpdatePassword"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET pass_hash = ?, updated_at = ? WHERE id = ?",
		passHash, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return expectAffected(op, res, storage.ErrUserNotFound)
}

func (s *Storage) UpdateAccount(ctx context.Context, userID string, fullName, email string) (*models.User, error) {
	const op = "storage.sqlite.UpdateAccount"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET full_name = ?, email = ?, updated_at = ? WHERE id = ?",
		fullName, email, time.Now().UTC(), userID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := expectAffected(op, res, storage.ErrUserNotFound); err != nil {
		return nil, err
	}

	return s.UserByID(ctx, userID)
}

const selectUser = `SELECT id, email, full_name, enrollment_number, pass_hash, refresh_token, created_at, updated_at FROM users`

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		user         models.User
		refreshToken sql.NullString
	)

	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FullName,
		&user.EnrollmentNumber,
		&user.PassHash,
		&refreshToken,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, err
	}

	user.RefreshToken = refreshToken.String

	return &user, nil
}

func expectAffected(op string, res sql.Result, notAffected error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, notAffected)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
