// Package bounce decides which provider failures deserve a bounce
// notification and drives each one through lookup, correlation,
// submission and suppression cleanup.
package bounce

import "github.com/nhle/mg2dsn/internal/model"

// Verdict is the classification of a single failure event.
type Verdict int

const (
	// Ignore means the event never produces a notification.
	Ignore Verdict = iota
	// NeedsCorrelation means the event is a delayed bounce whose context
	// must be recovered from the originating event.
	NeedsCorrelation
	// Ready means the event carries everything a report needs.
	Ready
)

func (v Verdict) String() string {
	switch v {
	case NeedsCorrelation:
		return "needs-correlation"
	case Ready:
		return "ready"
	default:
		return "ignore"
	}
}

// Classify returns the verdict for e. Only bounce and suppress-bounce
// failures that are authenticated or delayed qualify; delayed bounces are
// never authenticated by the provider and need correlation first.
func Classify(e model.FailureEvent) Verdict {
	if e.Reason != model.ReasonBounce && e.Reason != model.ReasonSuppressBounce {
		return Ignore
	}
	switch {
	case e.Flags.IsDelayedBounce:
		return NeedsCorrelation
	case e.Flags.IsAuthenticated:
		return Ready
	default:
		return Ignore
	}
}
