// Package history records usage samples in a local SQLite database so past
// consumption can be inspected after the fact.
package history

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/limitswatch/limitswatch/internal/core"
)

const fileName = "history.db"

const schema = `
CREATE TABLE IF NOT EXISTS usage_samples (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	provider_id   TEXT    NOT NULL,
	recorded_at   INTEGER NOT NULL,
	session_used  INTEGER NOT NULL,
	session_limit INTEGER NOT NULL,
	weekly_used   INTEGER NOT NULL,
	weekly_limit  INTEGER NOT NULL,
	credits       INTEGER,
	error         TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_samples_provider_time
	ON usage_samples (provider_id, recorded_at DESC);
`

// Sample is one recorded usage observation.
type Sample struct {
	ProviderID   string
	RecordedAt   time.Time
	SessionUsed  uint64
	SessionLimit uint64
	WeeklyUsed   uint64
	WeeklyLimit  uint64
	Credits      *uint64
	Error        string
}

// Store is an append-only sample log in SQLite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database under dir.
func Open(dir string) (*Store, error) {
	path := filepath.Join(dir, fileName)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record appends one sample for providerID, stamped now.
func (s *Store) Record(providerID string, data core.UsageData) error {
	var credits any
	if data.CreditsRemaining != nil {
		credits = *data.CreditsRemaining
	}
	_, err := s.db.Exec(`INSERT INTO usage_samples
		(provider_id, recorded_at, session_used, session_limit, weekly_used, weekly_limit, credits, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		providerID, time.Now().Unix(),
		data.SessionUsed, data.SessionLimit,
		data.WeeklyUsed, data.WeeklyLimit,
		credits, data.Error)
	if err != nil {
		return fmt.Errorf("recording sample: %w", err)
	}
	return nil
}

// Recent returns up to n samples for providerID, newest first.
func (s *Store) Recent(providerID string, n int) ([]Sample, error) {
	rows, err := s.db.Query(`SELECT provider_id, recorded_at,
		session_used, session_limit, weekly_used, weekly_limit, credits, error
		FROM usage_samples
		WHERE provider_id = ?
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?`, providerID, n)
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		var recordedAt int64
		var credits sql.NullInt64
		if err := rows.Scan(&sample.ProviderID, &recordedAt,
			&sample.SessionUsed, &sample.SessionLimit,
			&sample.WeeklyUsed, &sample.WeeklyLimit,
			&credits, &sample.Error); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		sample.RecordedAt = time.Unix(recordedAt, 0)
		if credits.Valid {
			c := uint64(credits.Int64)
			sample.Credits = &c
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Prune deletes samples older than the retention window.
func (s *Store) Prune(retain time.Duration) error {
	cutoff := time.Now().Add(-retain).Unix()
	if _, err := s.db.Exec(`DELETE FROM usage_samples WHERE recorded_at < ?`, cutoff); err != nil {
		return fmt.Errorf("pruning samples: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
