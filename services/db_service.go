package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"remi-caller/models"

	_ "github.com/lib/pq"
)

// DBService is the Postgres backed reminder and token store
type DBService struct {
	db *sql.DB
}

// NewDBService opens the connection pool and checks the database is reachable
func NewDBService(ctx context.Context, host string, port int, user, password, dbname string) (*DBService, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open reminder database")
	}
	db.SetMaxOpenConns(20)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s:%d/%s", host, port, dbname)
	}

	return &DBService{db: db}, nil
}

// Close releases the connection pool
func (s *DBService) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InitSchema creates tables if they don't exist
func (s *DBService) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS reminders (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		phone_number VARCHAR(32) NOT NULL,
		scheduled_time TIMESTAMPTZ,
		title TEXT,
		description TEXT,
		generated_audio_url TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		last_run TIMESTAMPTZ,
		result TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS user_tokens (
		user_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_reminders_status_id ON reminders(status, id);
	CREATE INDEX IF NOT EXISTS idx_reminders_created_at ON reminders(created_at DESC);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const reminderColumns = `id, user_id, phone_number, scheduled_time, title, description, generated_audio_url, status, last_run, result, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReminder(row rowScanner) (*models.Reminder, error) {
	var r models.Reminder
	var userID, title, description, audioURL, result sql.NullString
	var scheduledTime, lastRun sql.NullTime
	var status string

	err := row.Scan(&r.ID, &userID, &r.PhoneNumber, &scheduledTime, &title, &description, &audioURL, &status, &lastRun, &result, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	r.Status = models.ReminderStatus(status)
	r.UserID = userID.String
	r.Title = title.String
	r.Description = description.String
	r.GeneratedAudioURL = audioURL.String
	r.Result = result.String
	if scheduledTime.Valid {
		t := scheduledTime.Time.UTC()
		r.ScheduledTime = &t
	}
	if lastRun.Valid {
		t := lastRun.Time.UTC()
		r.LastRun = &t
	}
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Get retrieves a reminder by ID
func (s *DBService) Get(ctx context.Context, id string) (*models.Reminder, error) {
	r, err := scanReminder(s.db.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get reminder %s", id)
	}
	return r, nil
}

// Put inserts or overwrites a reminder
func (s *DBService) Put(ctx context.Context, r *models.Reminder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, phone_number, scheduled_time, title, description, generated_audio_url, status, last_run, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			phone_number = EXCLUDED.phone_number,
			scheduled_time = EXCLUDED.scheduled_time,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			generated_audio_url = EXCLUDED.generated_audio_url,
			status = EXCLUDED.status,
			last_run = EXCLUDED.last_run,
			result = EXCLUDED.result,
			updated_at = now()
	`, r.ID, nullString(r.UserID), r.PhoneNumber, nullTime(r.ScheduledTime), nullString(r.Title), nullString(r.Description),
		nullString(r.GeneratedAudioURL), string(r.Status), nullTime(r.LastRun), nullString(r.Result), r.CreatedAt)
	return errors.Wrapf(err, "put reminder %s", r.ID)
}

// Update locks the row, merges the partial update and writes it back
func (s *DBService) Update(ctx context.Context, id string, u models.ReminderUpdate) (*models.Reminder, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	r, err := scanReminder(tx.QueryRowContext(ctx, `SELECT `+reminderColumns+` FROM reminders WHERE id = $1 FOR UPDATE`, id))
	if err == sql.ErrNoRows {
		return nil, ErrReminderNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lock reminder %s", id)
	}
	if !u.Matches(r) {
		return nil, ErrStaleUpdate
	}

	u.Apply(r)

	_, err = tx.ExecContext(ctx, `
		UPDATE reminders
		SET phone_number = $2, scheduled_time = $3, title = $4, description = $5, generated_audio_url = $6,
			status = $7, last_run = $8, result = $9, updated_at = now()
		WHERE id = $1
	`, id, r.PhoneNumber, nullTime(r.ScheduledTime), nullString(r.Title), nullString(r.Description),
		nullString(r.GeneratedAudioURL), string(r.Status), nullTime(r.LastRun), nullString(r.Result))
	if err != nil {
		return nil, errors.Wrapf(err, "update reminder %s", id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a reminder and reports whether it existed
func (s *DBService) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = $1`, id)
	if err != nil {
		return false, errors.Wrapf(err, "delete reminder %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByStatus returns one page of reminders with the given status
func (s *DBService) ListByStatus(ctx context.Context, status models.ReminderStatus, afterID string, limit int) ([]models.Reminder, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+`
		FROM reminders
		WHERE status = $1 AND id > $2
		ORDER BY id
		LIMIT $3
	`, string(status), afterID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list reminders by status")
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// List returns all reminders, newest first
func (s *DBService) List(ctx context.Context) ([]models.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reminderColumns+` FROM reminders ORDER BY created_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list reminders")
	}
	defer rows.Close()

	reminders := []models.Reminder{}
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// SaveToken upserts the push token of a user
func (s *DBService) SaveToken(ctx context.Context, userID, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_tokens (user_id, token) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, updated_at = now()
	`, userID, token)
	return errors.Wrapf(err, "save token for %s", userID)
}

// GetToken returns the push token of a user
func (s *DBService) GetToken(ctx context.Context, userID string) (*models.UserToken, error) {
	var t models.UserToken
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, token, updated_at FROM user_tokens WHERE user_id = $1
	`, userID).Scan(&t.UserID, &t.Token, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get token for %s", userID)
	}
	return &t, nil
}
