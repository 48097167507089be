package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/antufev/gracebot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

var ErrReminderNotFound = errors.New("reminder not found")

// Storage persists reminders one row per record. Mutations go through
// the database write path, so two concurrent appends can never clobber
// each other the way a whole-collection read-modify-write would.
type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// An in-memory database lives in its connection; a second pooled
	// connection would see an empty schema.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reminders (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT DEFAULT '',
			scheduled_for INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			is_active INTEGER DEFAULT 1,
			os_id INTEGER DEFAULT 0,
			metadata TEXT DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_user_id ON reminders(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_os_id ON reminders(os_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}

func (s *Storage) Append(r *domain.ScheduledReminder) error {
	if r.ID == "" {
		return fmt.Errorf("reminder id cannot be empty")
	}

	metadata, err := json.Marshal(r.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	// scheduled_for is stored as unix milliseconds so reloads
	// round-trip exactly, never as a formatted string.
	_, err = s.db.Exec(
		`INSERT INTO reminders (id, kind, title, message, scheduled_for, user_id, is_active, os_id, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Kind), r.Title, r.Message, r.ScheduledFor.UnixMilli(),
		r.UserID, boolToInt(r.IsActive), r.OsID, string(metadata), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

// LoadAll returns every persisted reminder. A missing table or rows
// that fail to decode never surface as errors at startup: bad rows are
// skipped and logged.
func (s *Storage) LoadAll() ([]*domain.ScheduledReminder, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, title, message, scheduled_for, user_id, is_active, os_id, metadata, created_at
		 FROM reminders ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

// ListByUser returns the user's active reminders.
func (s *Storage) ListByUser(userID string) ([]*domain.ScheduledReminder, error) {
	rows, err := s.db.Query(
		`SELECT id, kind, title, message, scheduled_for, user_id, is_active, os_id, metadata, created_at
		 FROM reminders WHERE user_id = ? AND is_active = 1 ORDER BY scheduled_for`, userID)
	if err != nil {
		return nil, fmt.Errorf("query reminders by user: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (s *Storage) Get(id string) (*domain.ScheduledReminder, error) {
	row := s.db.QueryRow(
		`SELECT id, kind, title, message, scheduled_for, user_id, is_active, os_id, metadata, created_at
		 FROM reminders WHERE id = ?`, id)

	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *Storage) Toggle(id string, active bool) error {
	res, err := s.db.Exec(`UPDATE reminders SET is_active = ? WHERE id = ?`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("toggle reminder: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle reminder: %w", err)
	}
	if affected == 0 {
		return ErrReminderNotFound
	}
	return nil
}

// DeactivateByOsID deactivates the reminder bound to a scheduler entry
// and returns its id, empty when nothing matches (immediate sends are
// never persisted). Zero means unbound and never matches.
func (s *Storage) DeactivateByOsID(osID int64) (string, error) {
	if osID == 0 {
		return "", nil
	}

	var id string
	err := s.db.QueryRow(
		`UPDATE reminders SET is_active = 0 WHERE os_id = ? RETURNING id`, osID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("deactivate reminder: %w", err)
	}
	return id, nil
}

// UpdateOsID rebinds a reminder to a new scheduler entry after re-arming.
func (s *Storage) UpdateOsID(id string, osID int64) error {
	if _, err := s.db.Exec(`UPDATE reminders SET os_id = ? WHERE id = ?`, osID, id); err != nil {
		return fmt.Errorf("update reminder os id: %w", err)
	}
	return nil
}

func (s *Storage) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM reminders`); err != nil {
		return fmt.Errorf("clear reminders: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*domain.ScheduledReminder, error) {
	var (
		r            domain.ScheduledReminder
		kind         string
		scheduledFor int64
		isActive     int
		metadata     string
	)

	err := row.Scan(&r.ID, &kind, &r.Title, &r.Message, &scheduledFor,
		&r.UserID, &isActive, &r.OsID, &metadata, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Kind = domain.ReminderKind(kind)
	r.ScheduledFor = time.UnixMilli(scheduledFor)
	r.IsActive = isActive != 0

	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		// Corrupt metadata degrades to an empty map, it never fails a load.
		log.Printf("Corrupt metadata for reminder %s: %v", r.ID, err)
		r.Metadata = map[string]string{}
	}
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}

	return &r, nil
}

func scanReminders(rows *sql.Rows) ([]*domain.ScheduledReminder, error) {
	var reminders []*domain.ScheduledReminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			log.Printf("Skipping unreadable reminder row: %v", err)
			continue
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return reminders, fmt.Errorf("iterate reminders: %w", err)
	}
	return reminders, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
