package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultLimit is the number of entries GetHistory returns when none is given.
	DefaultLimit = 50

	// MaxLimit caps a single GetHistory call.
	MaxLimit = 200

	// timeLayout is fixed-width so that string order is time order.
	timeLayout = "2006-01-02T15:04:05.000000Z"
)

// ErrCharacteristicRequired indicates a call without a characteristic ID.
var ErrCharacteristicRequired = errors.New("history: characteristic id is required")

// Entry is one recorded characteristic value.
type Entry struct {
	ID               int64     `json:"id"`
	CharacteristicID string    `json:"characteristic_id"`
	ServiceID        string    `json:"service_id"`
	Value            any       `json:"value"`
	RecordedAt       time.Time `json:"recorded_at"`
}

// Repository stores characteristic history. Implementations must be safe for
// concurrent use and store UTC timestamps.
type Repository interface {
	Record(ctx context.Context, e Entry) error
	GetHistory(ctx context.Context, characteristicID string, limit int) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// SQLiteRepository keeps history in the characteristic_history table. Values
// are stored as JSON so they come back with their JSON type.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository returns a repository on db. The schema comes from the
// embedded migrations.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// Record inserts e. A zero RecordedAt means now.
func (r *SQLiteRepository) Record(ctx context.Context, e Entry) error {
	if e.CharacteristicID == "" {
		return ErrCharacteristicRequired
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = r.now()
	}

	value, err := json.Marshal(e.Value)
	if err != nil {
		return fmt.Errorf("marshalling value: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO characteristic_history (characteristic_id, service_id, value, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		e.CharacteristicID,
		e.ServiceID,
		string(value),
		e.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting history: %w", err)
	}
	return nil
}

// GetHistory returns the newest entries for a characteristic, newest first.
// limit defaults to DefaultLimit and is capped at MaxLimit.
func (r *SQLiteRepository) GetHistory(ctx context.Context, characteristicID string, limit int) ([]Entry, error) {
	if characteristicID == "" {
		return nil, ErrCharacteristicRequired
	}
	limit = clampLimit(limit)

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, characteristic_id, service_id, value, recorded_at
		 FROM characteristic_history
		 WHERE characteristic_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		characteristicID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var value, recordedAt string
		if err := rows.Scan(&e.ID, &e.CharacteristicID, &e.ServiceID, &value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning history: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &e.Value); err != nil {
			return nil, fmt.Errorf("unmarshalling value: %w", err)
		}
		if e.RecordedAt, err = parseTimestamp(recordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return entries, nil
}

// Prune deletes entries older than olderThan and returns how many went.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(timeLayout)
	res, err := r.db.ExecContext(ctx, "DELETE FROM characteristic_history WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing recorded_at %q: %w", s, err)
	}
	return t, nil
}
