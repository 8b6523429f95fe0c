package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mg2dsn/internal/ledger"
	"github.com/nhle/mg2dsn/internal/model"
	"github.com/nhle/mg2dsn/tests/testutil"
)

func TestSQLiteLedger_RecordAndSeen(t *testing.T) {
	l := testutil.NewTestLedger(t)
	ctx := context.Background()

	seen, err := l.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	notifiedAt := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, l.Record(ctx, model.Notification{
		EventID:    "evt-1",
		Domain:     "mg.example.com",
		Recipient:  "bob@remote.test",
		MessageID:  "m1@mg.example.com",
		ReportID:   "<mg2dsn.1.x@mg.example.com>",
		NotifiedAt: notifiedAt,
	}))

	seen, err = l.Seen(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = l.Seen(ctx, "evt-2")
	require.NoError(t, err)
	assert.False(t, seen)

	list, err := l.Notifications(ctx, "mg.example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "bob@remote.test", list[0].Recipient)
	assert.Equal(t, "<mg2dsn.1.x@mg.example.com>", list[0].ReportID)
	assert.True(t, notifiedAt.Equal(list[0].NotifiedAt))
}

func TestSQLiteLedger_RecordTwiceKeepsOneRow(t *testing.T) {
	l := testutil.NewTestLedger(t)
	ctx := context.Background()

	n := model.Notification{EventID: "evt-1", Domain: "mg.example.com", Recipient: "bob@remote.test"}
	require.NoError(t, l.Record(ctx, n))
	n.ReportID = "<second@mg.example.com>"
	require.NoError(t, l.Record(ctx, n))

	list, err := l.Notifications(ctx, "mg.example.com")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "<second@mg.example.com>", list[0].ReportID)
	assert.False(t, list[0].NotifiedAt.IsZero())
}

func TestSQLiteLedger_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "ledger.db")
	ctx := context.Background()

	l, err := ledger.Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, model.Notification{EventID: "evt-9", Domain: "d", Recipient: "r@x"}))
	require.NoError(t, l.Close())

	l, err = ledger.Open(path)
	require.NoError(t, err)
	defer l.Close()

	seen, err := l.Seen(ctx, "evt-9")
	require.NoError(t, err)
	assert.True(t, seen)
}
