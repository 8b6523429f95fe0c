package ledger

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	event_id    TEXT PRIMARY KEY,
	domain      TEXT NOT NULL,
	recipient   TEXT NOT NULL,
	message_id  TEXT NOT NULL DEFAULT '',
	report_id   TEXT NOT NULL DEFAULT '',
	notified_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_notifications_domain ON notifications(domain);
CREATE INDEX IF NOT EXISTS idx_notifications_notified_at ON notifications(notified_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
