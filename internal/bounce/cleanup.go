package bounce

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/mg2dsn/internal/logger"
	"github.com/nhle/mg2dsn/internal/model"
)

// SuppressionStore deletes suppression entries.
type SuppressionStore interface {
	DeleteBounce(ctx context.Context, domain, recipient string) error
}

// Cleanup is what the Cleaner did with a suppression.
type Cleanup int

const (
	// Kept means the suppression stays in place.
	Kept Cleanup = iota
	// Cleared means the suppression was deleted.
	Cleared
	// WouldClear means a delete was due but dry-run mode held it back.
	WouldClear
)

// Cleaner removes suppressions created by a bounce once the sender has
// been told about it.
type Cleaner struct {
	store  SuppressionStore
	domain string
	dryRun bool
}

// NewCleaner creates a Cleaner for domain.
func NewCleaner(store SuppressionStore, domain string, dryRun bool) *Cleaner {
	return &Cleaner{store: store, domain: domain, dryRun: dryRun}
}

// Reconcile logs how far apart the bounce and the suppression are, then
// deletes the suppression when the event reason is "bounce". A
// suppress-bounce event means the recipient was already suppressed before
// this send, so that entry is never touched.
func (c *Cleaner) Reconcile(
	ctx context.Context,
	e model.FailureEvent,
	record *model.SuppressionRecord,
) (Cleanup, error) {
	if record != nil {
		logDelta(e, record)
	}

	if e.Reason != model.ReasonBounce {
		logger.Debug("keeping suppression", "recipient", e.Recipient, "reason", e.Reason)
		return Kept, nil
	}

	if c.dryRun {
		logger.Info("dry run: would delete suppression", "recipient", e.Recipient)
		return WouldClear, nil
	}

	if err := c.store.DeleteBounce(ctx, c.domain, e.Recipient); err != nil {
		return Kept, fmt.Errorf("clearing suppression of %s: %w", e.Recipient, err)
	}
	logger.Info("suppression cleared", "recipient", e.Recipient)
	return Cleared, nil
}

func logDelta(e model.FailureEvent, record *model.SuppressionRecord) {
	created, err := record.Created()
	if err != nil {
		logger.Warn("unreadable suppression timestamp", "recipient", e.Recipient, "created_at", record.CreatedAt)
		return
	}
	delta := e.Time().Sub(created)
	if delta < 0 {
		delta = -delta
	}
	logger.Info("suppression delta",
		"recipient", e.Recipient,
		"bounced", e.Time().Format(time.RFC3339),
		"suppressed", created.Format(time.RFC3339),
		"delta", delta.Round(time.Second),
	)
}
