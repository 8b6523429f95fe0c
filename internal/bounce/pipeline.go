package bounce

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/mg2dsn/internal/dsn"
	"github.com/nhle/mg2dsn/internal/logger"
	"github.com/nhle/mg2dsn/internal/mailgun"
	"github.com/nhle/mg2dsn/internal/model"
)

// Feed yields pages of failure events until it reports Done.
type Feed interface {
	Next(ctx context.Context) ([]model.FailureEvent, error)
	Done() bool
	Pages() int
}

// API is the provider surface the Processor drives.
type API interface {
	EventLookup
	SuppressionStore
	dsn.MessageStore
	GetBounce(ctx context.Context, domain, recipient string) (*model.SuppressionRecord, error)
	SendMIME(ctx context.Context, domain, to string, mime []byte) (*mailgun.SendResult, error)
}

// Ledger remembers which events have already been notified.
type Ledger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, n model.Notification) error
}

// Options configures a Processor.
type Options struct {
	Domain string

	// DryRun assembles reports but neither submits them nor deletes
	// suppressions.
	DryRun bool

	// Ledger is optional; nil disables cross-run deduplication.
	Ledger Ledger
}

// Stats summarises one run.
type Stats struct {
	Pages           int
	Scanned         int
	Candidates      int
	Sent            int
	SendFailures    int
	Insufficient    int
	NoSuppression   int
	AlreadyNotified int
	Cleared         int
	Kept            int

	// WouldClear counts deletes held back by dry-run mode.
	WouldClear int
}

// Processor walks the failure feed once, handling each event fully
// before moving to the next.
type Processor struct {
	api       API
	feed      Feed
	opts      Options
	resolver  *Resolver
	cleaner   *Cleaner
	assembler *dsn.Assembler
	now       func() time.Time
}

// NewProcessor wires the pipeline stages for opts.Domain.
func NewProcessor(api API, feed Feed, opts Options) *Processor {
	return &Processor{
		api:       api,
		feed:      feed,
		opts:      opts,
		resolver:  NewResolver(api, opts.Domain),
		cleaner:   NewCleaner(api, opts.Domain, opts.DryRun),
		assembler: dsn.NewAssembler(opts.Domain),
		now:       time.Now,
	}
}

// Run processes the feed until a page comes back empty. Submission
// failures are logged and counted; any other failure stops the run.
func (p *Processor) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	for !p.feed.Done() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		items, err := p.feed.Next(ctx)
		stats.Pages = p.feed.Pages()
		if err != nil {
			return stats, fmt.Errorf("reading failure feed: %w", err)
		}
		logger.Debug("page fetched", "page", stats.Pages, "items", len(items))

		for i := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if err := p.handle(ctx, &items[i], &stats); err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}

func (p *Processor) handle(ctx context.Context, e *model.FailureEvent, stats *Stats) error {
	stats.Scanned++

	verdict := Classify(*e)
	if verdict == Ignore {
		logger.Debug("ignoring event", "event", e.ID, "reason", e.Reason)
		return nil
	}
	stats.Candidates++

	record, err := p.api.GetBounce(ctx, p.opts.Domain, e.Recipient)
	if err != nil {
		return err
	}
	if record == nil {
		stats.NoSuppression++
		logger.Info("no suppression, skipping", "event", e.ID, "recipient", e.Recipient)
		return nil
	}

	notify := true
	if p.opts.Ledger != nil {
		seen, err := p.opts.Ledger.Seen(ctx, e.ID)
		if err != nil {
			return err
		}
		if seen {
			stats.AlreadyNotified++
			logger.Info("already notified", "event", e.ID, "recipient", e.Recipient)
			notify = false
		}
	}

	if notify && verdict == NeedsCorrelation {
		res, err := p.resolver.Resolve(ctx, e)
		if err != nil {
			return err
		}
		if res.Insufficient {
			stats.Insufficient++
			logger.Warn("insufficient context, not notifying",
				"event", e.ID, "recipient", e.Recipient, "why", res.Reason)
			notify = false
		}
	}

	if notify {
		if err := p.notify(ctx, e, stats); err != nil {
			return err
		}
	}

	outcome, err := p.cleaner.Reconcile(ctx, *e, record)
	if err != nil {
		return err
	}
	switch outcome {
	case Cleared:
		stats.Cleared++
	case Kept:
		stats.Kept++
	case WouldClear:
		stats.WouldClear++
	}
	return nil
}

func (p *Processor) notify(ctx context.Context, e *model.FailureEvent, stats *Stats) error {
	original, err := dsn.FetchOriginal(ctx, p.api, *e)
	if err != nil {
		return err
	}

	report, err := p.assembler.Assemble(*e, original)
	if err != nil {
		return fmt.Errorf("assembling report: %w", err)
	}

	if p.opts.DryRun {
		logger.Info("dry run: report not sent",
			"event", e.ID, "to", report.To, "message_id", report.MessageID, "bytes", len(report.Raw))
		return nil
	}

	result, err := p.api.SendMIME(ctx, p.opts.Domain, report.To, report.Raw)
	if err != nil {
		stats.SendFailures++
		logger.Error("report submission failed", "event", e.ID, "to", report.To, "error", err)
		return nil
	}
	stats.Sent++
	logger.Info("report sent", "event", e.ID, "to", report.To, "id", result.ID, "response", result.Message)
	logger.Debug("submit response", "status", result.StatusCode)

	if p.opts.Ledger == nil {
		return nil
	}
	err = p.opts.Ledger.Record(ctx, model.Notification{
		EventID:    e.ID,
		Domain:     p.opts.Domain,
		Recipient:  e.Recipient,
		MessageID:  report.OriginalMessageID,
		ReportID:   report.MessageID,
		NotifiedAt: p.now(),
	})
	if err != nil {
		return fmt.Errorf("recording notification for %s: %w", e.ID, err)
	}
	return nil
}
