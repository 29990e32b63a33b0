package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Adhamjon1112/Kirim-Chiqim/internal/models"
	"github.com/shopspring/decimal"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned for lookups that match no row. Ownership-scoped
// transaction lookups return it both for missing rows and rows owned by
// someone else, so callers cannot tell the two apart.
var ErrNotFound = errors.New("storage: not found")

// ErrUsernameTaken is returned by CreateUser when the username is already
// in use, including when a concurrent registration wins the race.
var ErrUsernameTaken = errors.New("storage: username taken")

// DB wraps a sql.DB connection.
type DB struct {
	conn *sql.DB
}

// NewDB opens a database connection and runs migrations.
func NewDB(path string) (*DB, error) {
	// foreign_keys is a per-connection pragma; it has to ride the DSN so
	// every connection the pool opens gets it.
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory database exists per connection; the pool must not
	// open a second one.
	if path == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	if err := runMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// CreateUser inserts a new user and fills in its ID and creation time.
func (db *DB) CreateUser(u *models.User) error {
	result, err := db.conn.Exec(
		`INSERT INTO users (first_name, last_name, username, email, profile_image, password_hash, is_staff, is_superuser, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FirstName, u.LastName, u.Username, u.Email, u.ProfileImage,
		u.PasswordHash, u.IsStaff, u.IsSuperuser, u.IsActive,
	)
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
			return ErrUsernameTaken
		}
		return fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}

	created, err := db.GetUserByID(id)
	if err != nil {
		return err
	}
	*u = *created
	return nil
}

const userColumns = "id, first_name, last_name, username, email, profile_image, password_hash, is_staff, is_superuser, is_active, created_at"

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email,
		&u.ProfileImage, &u.PasswordHash, &u.IsStaff, &u.IsSuperuser, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(id int64) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE id = ?", id,
	))
}

// GetUserByUsername retrieves a user by exact username match.
func (db *DB) GetUserByUsername(username string) (*models.User, error) {
	return scanUser(db.conn.QueryRow(
		"SELECT "+userColumns+" FROM users WHERE username = ?", username,
	))
}

// UserCount returns the number of users in the database.
func (db *DB) UserCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// CreateTransaction inserts a new transaction owned by t.UserID and fills
// in its ID. The date is server-assigned at creation when unset.
func (db *DB) CreateTransaction(t *models.Transaction) error {
	if t.Date.IsZero() {
		t.Date = time.Now()
	}
	result, err := db.conn.Exec(
		"INSERT INTO transactions (user_id, type, amount, description, date) VALUES (?, ?, ?, ?, ?)",
		t.UserID, string(t.Type), t.Amount.String(), t.Description, t.Date,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	t.ID, err = result.LastInsertId()
	return err
}

func scanTransaction(scan func(dest ...any) error) (*models.Transaction, error) {
	var t models.Transaction
	var amount string
	if err := scan(&t.ID, &t.UserID, &t.Type, &amount, &t.Description, &t.Date); err != nil {
		return nil, err
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	t.Amount = dec
	return &t, nil
}

// GetTransaction retrieves a transaction by ID, scoped to its owner.
func (db *DB) GetTransaction(id, userID int64) (*models.Transaction, error) {
	row := db.conn.QueryRow(
		"SELECT id, user_id, type, amount, description, date FROM transactions WHERE id = ? AND user_id = ?",
		id, userID,
	)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTransaction updates type, amount and description in place.
// Owner and date stay untouched.
func (db *DB) UpdateTransaction(t *models.Transaction) error {
	result, err := db.conn.Exec(
		"UPDATE transactions SET type = ?, amount = ?, description = ? WHERE id = ? AND user_id = ?",
		string(t.Type), t.Amount.String(), t.Description, t.ID, t.UserID,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction, scoped to its owner.
func (db *DB) DeleteTransaction(id, userID int64) error {
	result, err := db.conn.Exec(
		"DELETE FROM transactions WHERE id = ? AND user_id = ?", id, userID,
	)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTransactions retrieves all transactions owned by a user, newest first.
func (db *DB) ListTransactions(userID int64) ([]models.Transaction, error) {
	rows, err := db.conn.Query(
		"SELECT id, user_id, type, amount, description, date FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, rows.Err()
}

// CreateSession creates a new session for a user.
func (db *DB) CreateSession(token string, userID int64, expiresAt time.Time) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt, time.Now(),
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSession checks if a session token is valid and returns the associated user.
func (db *DB) ValidateSession(token string) (*models.User, error) {
	info, err := db.ValidateSessionWithInfo(token)
	if err != nil {
		return nil, err
	}
	return info.User, nil
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
func (db *DB) ValidateSessionWithInfo(token string) (*SessionInfo, error) {
	row := db.conn.QueryRow(`
		SELECT u.id, u.first_name, u.last_name, u.username, u.email, u.profile_image,
		       u.password_hash, u.is_staff, u.is_superuser, u.is_active, u.created_at,
		       s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, time.Now())

	var u models.User
	var lastActivity, expiresAt time.Time
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.ProfileImage,
		&u.PasswordHash, &u.IsStaff, &u.IsSuperuser, &u.IsActive, &u.CreatedAt,
		&lastActivity, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &SessionInfo{
		User:         &u,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (db *DB) RenewSession(token string, newExpiresAt time.Time) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		time.Now(), newExpiresAt, token,
	)
	return err
}

// DeleteSession removes a session by token.
func (db *DB) DeleteSession(token string) error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes all expired sessions.
func (db *DB) CleanExpiredSessions() error {
	_, err := db.conn.Exec("DELETE FROM sessions WHERE expires_at <= ?", time.Now())
	return err
}
