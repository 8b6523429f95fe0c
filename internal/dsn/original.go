package dsn

import (
	"context"
	"fmt"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mg2dsn/internal/logger"
	"github.com/nhle/mg2dsn/internal/model"
)

// FallbackOriginal stands in for the original message once the provider
// has purged it from storage.
const FallbackOriginal = `From: no-user@no-host.invalid
Subject: original message deleted
Content-Type: text/plain

Sorry, the bounce generator did not run soon enough and the original
message was garbage-collected by the mail provider in the meanwhile.`

// MessageStore fetches raw stored messages by URL. ok is false when the
// provider no longer holds the message.
type MessageStore interface {
	FetchStoredMessage(ctx context.Context, storageURL string) (body string, ok bool, err error)
}

// Original is the message embedded as the third part of a report.
type Original struct {
	// Raw is embedded verbatim.
	Raw []byte

	// Header is the parsed top-level header; empty when Raw could not be
	// parsed.
	Header mail.Header

	// Fallback is true when Raw is FallbackOriginal.
	Fallback bool
}

// Subject returns the decoded Subject header, or "".
func (o *Original) Subject() string {
	if o == nil {
		return ""
	}
	subject, err := o.Header.Subject()
	if err != nil {
		return o.Header.Get("Subject")
	}
	return subject
}

// ParseOriginal wraps raw MIME text. Parsing failures are tolerated: the
// text is still embedded as-is.
func ParseOriginal(raw string, fallback bool) *Original {
	o := &Original{Raw: []byte(raw), Fallback: fallback}

	entity, err := message.Read(strings.NewReader(raw))
	if entity != nil {
		o.Header = mail.Header{Header: entity.Header}
	}
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		logger.Debug("original message did not parse", "error", err)
	}
	return o
}

// FetchOriginal returns the stored original of e, or the fallback when e
// has no storage reference or the provider has purged the message.
func FetchOriginal(ctx context.Context, store MessageStore, e model.FailureEvent) (*Original, error) {
	if e.Storage == nil || e.Storage.URL == "" {
		logger.Debug("no storage reference; using fallback original", "event", e.ID)
		return ParseOriginal(FallbackOriginal, true), nil
	}

	body, ok, err := store.FetchStoredMessage(ctx, e.Storage.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching original of %s: %w", e.ID, err)
	}
	if !ok {
		logger.Info("original message expired; using fallback", "event", e.ID)
		return ParseOriginal(FallbackOriginal, true), nil
	}

	return ParseOriginal(body, false), nil
}
