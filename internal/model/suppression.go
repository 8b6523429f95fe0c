package model

import (
	"fmt"
	"strings"
	"time"
)

// SuppressionRecord is the provider-side bounce entry for a recipient.
// It is owned by the provider; mg2dsn only reads and deletes it.
type SuppressionRecord struct {
	Address   string `json:"address"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
}

// createdAtLayouts are tried in order; Mailgun uses RFC 1123 with a
// literal "UTC" or "GMT" zone.
var createdAtLayouts = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC3339,
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// Created parses CreatedAt.
func (r SuppressionRecord) Created() (time.Time, error) {
	value := strings.TrimSpace(r.CreatedAt)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing suppression created_at %q", r.CreatedAt)
}
