// Package ledger keeps an optional record of notified failure events so a
// re-run never sends the same bounce report twice.
package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mg2dsn/internal/model"
)

// SQLiteLedger stores notifications in a local SQLite database.
type SQLiteLedger struct {
	db *sqlx.DB
}

// Open opens (or creates) the ledger at dbPath, enables WAL mode, and
// runs any pending schema migrations.
func Open(dbPath string) (*SQLiteLedger, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// An in-memory database exists per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return l, nil
}

// Close closes the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (l *SQLiteLedger) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := l.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = l.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := l.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Seen reports whether a report was already sent for eventID.
func (l *SQLiteLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	var count int
	err := l.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE event_id = ?", eventID,
	)
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", eventID, err)
	}
	return count > 0, nil
}

// Record stores n. Recording the same event twice keeps the latest entry.
func (l *SQLiteLedger) Record(ctx context.Context, n model.Notification) error {
	if n.NotifiedAt.IsZero() {
		n.NotifiedAt = time.Now()
	}

	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO notifications (
			event_id, domain, recipient, message_id, report_id, notified_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		n.EventID, n.Domain, n.Recipient, n.MessageID, n.ReportID, n.NotifiedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording notification for %s: %w", n.EventID, err)
	}
	return nil
}

// Notifications lists the recorded notifications for domain, newest first.
func (l *SQLiteLedger) Notifications(ctx context.Context, domain string) ([]model.Notification, error) {
	rows, err := l.db.QueryxContext(ctx, `
		SELECT event_id, domain, recipient, message_id, report_id, notified_at
		FROM notifications WHERE domain = ? ORDER BY notified_at DESC`,
		domain,
	)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// scanNotification scans a notification row from a sqlx.Rows result set.
func scanNotification(rows *sqlx.Rows) (model.Notification, error) {
	var (
		n          model.Notification
		notifiedAt time.Time
	)

	err := rows.Scan(
		&n.EventID, &n.Domain, &n.Recipient,
		&n.MessageID, &n.ReportID, &notifiedAt,
	)
	if err != nil {
		return n, fmt.Errorf("scanning notification row: %w", err)
	}

	n.NotifiedAt = notifiedAt.UTC()
	return n, nil
}
