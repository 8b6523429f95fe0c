package bounce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mg2dsn/internal/model"
)

type fakeSuppressions struct {
	deleted []string
	err     error
}

func (f *fakeSuppressions) DeleteBounce(_ context.Context, _ string, recipient string) error {
	f.deleted = append(f.deleted, recipient)
	return f.err
}

var sampleRecord = &model.SuppressionRecord{
	Address:   "bob@remote.test",
	CreatedAt: "Wed, 15 Jan 2025 11:00:00 UTC",
}

func TestCleaner_DeletesOnlyForBounce(t *testing.T) {
	tests := []struct {
		reason      string
		record      *model.SuppressionRecord
		wantDeletes int
		want        Cleanup
	}{
		{reason: model.ReasonBounce, record: sampleRecord, wantDeletes: 1, want: Cleared},
		{reason: model.ReasonBounce, record: nil, wantDeletes: 1, want: Cleared},
		{reason: model.ReasonSuppressBounce, record: sampleRecord, wantDeletes: 0, want: Kept},
		{reason: model.ReasonSuppressBounce, record: nil, wantDeletes: 0, want: Kept},
	}

	for _, tt := range tests {
		store := &fakeSuppressions{}
		c := NewCleaner(store, "mg.example.com", false)

		got, err := c.Reconcile(context.Background(), model.FailureEvent{
			Recipient: "bob@remote.test",
			Reason:    tt.reason,
			Timestamp: 1736942400,
		}, tt.record)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.reason)
		assert.Len(t, store.deleted, tt.wantDeletes, tt.reason)
	}
}

func TestCleaner_DryRunHoldsDelete(t *testing.T) {
	store := &fakeSuppressions{}
	c := NewCleaner(store, "mg.example.com", true)

	got, err := c.Reconcile(context.Background(), model.FailureEvent{
		Recipient: "bob@remote.test",
		Reason:    model.ReasonBounce,
	}, sampleRecord)
	require.NoError(t, err)
	assert.Equal(t, WouldClear, got)
	assert.Empty(t, store.deleted)
}

func TestCleaner_DeleteError(t *testing.T) {
	store := &fakeSuppressions{err: errors.New("status 500")}
	c := NewCleaner(store, "mg.example.com", false)

	_, err := c.Reconcile(context.Background(), model.FailureEvent{
		Recipient: "bob@remote.test",
		Reason:    model.ReasonBounce,
	}, sampleRecord)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bob@remote.test")
}

func TestCleaner_UnreadableCreatedAtIsOnlyLogged(t *testing.T) {
	store := &fakeSuppressions{}
	c := NewCleaner(store, "mg.example.com", false)

	got, err := c.Reconcile(context.Background(), model.FailureEvent{
		Recipient: "bob@remote.test",
		Reason:    model.ReasonBounce,
	}, &model.SuppressionRecord{CreatedAt: "yesterday"})
	require.NoError(t, err)
	assert.Equal(t, Cleared, got)
}
