package bounce

import (
	"context"
	"fmt"

	"github.com/nhle/mg2dsn/internal/logger"
	"github.com/nhle/mg2dsn/internal/model"
)

// EventLookup finds the events recorded for one message, oldest first.
type EventLookup interface {
	FindByMessageID(ctx context.Context, domain, messageID string) ([]model.FailureEvent, error)
}

// Reasons a delayed bounce cannot be correlated.
const (
	ReasonNoMessageID   = "event has no message-id"
	ReasonOriginExpired = "originating event no longer available"
)

// Resolution is the outcome of correlating one delayed bounce.
type Resolution struct {
	// Insufficient means no report can be built; the event still goes
	// through suppression bookkeeping.
	Insufficient bool
	Reason       string

	// Merged is true when storage and envelope were copied in from the
	// originating event.
	Merged bool
}

// Resolver recovers the storage reference and envelope of a delayed
// bounce from the event that originally accepted the message.
type Resolver struct {
	lookup EventLookup
	domain string
}

// NewResolver creates a Resolver querying domain's event log.
func NewResolver(lookup EventLookup, domain string) *Resolver {
	return &Resolver{lookup: lookup, domain: domain}
}

// Resolve fills in e's missing context in place. An event without a
// message-id is insufficient even when it carries storage and envelope;
// otherwise an event that already has both performs no request.
func (r *Resolver) Resolve(ctx context.Context, e *model.FailureEvent) (Resolution, error) {
	id := e.MessageID()
	if id == "" {
		return Resolution{Insufficient: true, Reason: ReasonNoMessageID}, nil
	}

	if e.HasContext() {
		return Resolution{}, nil
	}

	items, err := r.lookup.FindByMessageID(ctx, r.domain, id)
	if err != nil {
		return Resolution{}, fmt.Errorf("correlating event %s: %w", e.ID, err)
	}
	if len(items) == 0 {
		return Resolution{Insufficient: true, Reason: ReasonOriginExpired}, nil
	}

	origin := items[0]
	if origin.Storage == nil || origin.Storage.URL == "" {
		logger.Debug("originating event has no storage", "event", e.ID, "origin", origin.ID)
		return Resolution{}, nil
	}

	e.MergeOrigin(origin)
	logger.Debug("merged originating event", "event", e.ID, "origin", origin.ID)
	return Resolution{Merged: true}, nil
}
