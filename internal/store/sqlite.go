package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	// Cascade deletes on users depend on foreign key enforcement.
	if !strings.Contains(dataSourceName, "_foreign_keys") {
		sep := "?"
		if strings.Contains(dataSourceName, "?") {
			sep = "&"
		}
		dataSourceName += sep + "_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_id TEXT UNIQUE NOT NULL,
        name TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS messages (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER, -- nullable for legacy/anonymous records
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
        content TEXT NOT NULL,
        session_id TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS checkins (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        text TEXT NOT NULL,
        mood TEXT,
        sentiment TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS reframes (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        original_text TEXT NOT NULL,
        reframed_text TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByExternalID(externalID string) (*User, error) {
	var user User
	var name sql.NullString
	err := s.db.QueryRow("SELECT id, external_id, name, created_at FROM users WHERE external_id = ?", externalID).Scan(&user.ID, &user.ExternalID, &name, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if name.Valid {
		user.Name = &name.String
	}
	return &user, nil
}

// GetOrCreateUser resolves a user by external identifier, creating the
// record on first contact. INSERT OR IGNORE plus a re-select keeps this
// idempotent when two first-contact requests race: the unique constraint
// on external_id guarantees at most one row.
func (s *SQLiteStore) GetOrCreateUser(externalID string) (*User, error) {
	_, err := s.db.Exec("INSERT OR IGNORE INTO users (external_id, created_at) VALUES (?, ?)", externalID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	user, err := s.GetUserByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s missing after get-or-create", externalID)
	}
	return user, nil
}

// Message methods

func (s *SQLiteStore) CreateMessage(msg *Message) error {
	msg.ID = uuid.NewString() // Ensure ID is set
	msg.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO messages (id, user_id, role, content, session_id, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare message insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(msg.ID, msg.UserID, msg.Role, msg.Content, msg.SessionID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute message insert: %w", err)
	}
	return nil
}

// GetLastNMessagesByUserID returns the user's most recent messages,
// newest first.
func (s *SQLiteStore) GetLastNMessagesByUserID(userID int64, n int) ([]Message, error) {
	query := `
        SELECT id, user_id, role, content, session_id, created_at
        FROM messages
        WHERE user_id = ?
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `

	rows, err := s.db.Query(query, userID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetRecentMessages returns the newest messages across all users, for
// the admin history feed.
func (s *SQLiteStore) GetRecentMessages(limit int) ([]Message, error) {
	query := `
        SELECT id, user_id, role, content, session_id, created_at
        FROM messages
        ORDER BY created_at DESC, rowid DESC
        LIMIT ?
    `

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		var userID sql.NullInt64
		var sessionID sql.NullString
		if err := rows.Scan(&msg.ID, &userID, &msg.Role, &msg.Content, &sessionID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		if userID.Valid {
			msg.UserID = &userID.Int64
		}
		if sessionID.Valid {
			msg.SessionID = &sessionID.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Checkin methods

func (s *SQLiteStore) CreateCheckin(checkin *Checkin) error {
	checkin.ID = uuid.NewString()
	checkin.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO checkins (id, user_id, text, mood, sentiment, created_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare checkin insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(checkin.ID, checkin.UserID, checkin.Text, checkin.Mood, checkin.Sentiment, checkin.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute checkin insert: %w", err)
	}
	return nil
}

// GetCheckinsSince returns a user's checkins created at or after the
// cutoff, in chronological order.
func (s *SQLiteStore) GetCheckinsSince(userID int64, since time.Time) ([]Checkin, error) {
	query := `
        SELECT id, user_id, text, mood, sentiment, created_at
        FROM checkins
        WHERE user_id = ? AND created_at >= ?
        ORDER BY created_at ASC, rowid ASC
    `

	rows, err := s.db.Query(query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkins: %w", err)
	}
	defer rows.Close()

	var checkins []Checkin
	for rows.Next() {
		var c Checkin
		var mood sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Text, &mood, &c.Sentiment, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan checkin row: %w", err)
		}
		if mood.Valid {
			c.Mood = &mood.String
		}
		checkins = append(checkins, c)
	}
	return checkins, rows.Err()
}

// Reframe methods

func (s *SQLiteStore) CreateReframe(reframe *Reframe) error {
	reframe.ID = uuid.NewString()
	reframe.CreatedAt = time.Now()

	stmt, err := s.db.Prepare("INSERT INTO reframes (id, user_id, original_text, reframed_text, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare reframe insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(reframe.ID, reframe.UserID, reframe.OriginalText, reframe.ReframedText, reframe.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute reframe insert: %w", err)
	}
	return nil
}

// GetReframesByUserID returns a user's reframes, newest first.
func (s *SQLiteStore) GetReframesByUserID(userID int64) ([]Reframe, error) {
	query := `
        SELECT id, user_id, original_text, reframed_text, created_at
        FROM reframes
        WHERE user_id = ?
        ORDER BY created_at DESC, rowid DESC
    `

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reframes: %w", err)
	}
	defer rows.Close()

	var reframes []Reframe
	for rows.Next() {
		var r Reframe
		if err := rows.Scan(&r.ID, &r.UserID, &r.OriginalText, &r.ReframedText, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reframe row: %w", err)
		}
		reframes = append(reframes, r)
	}
	return reframes, rows.Err()
}

// DeleteUser removes a user and, via foreign keys, every dependent
// message, checkin and reframe.
func (s *SQLiteStore) DeleteUser(externalID string) error {
	res, err := s.db.Exec("DELETE FROM users WHERE external_id = ?", externalID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user not found, nothing deleted")
	}
	return nil
}
