package model

import "time"

// Notification records a bounce report that was accepted by the provider
// for one failure event.
type Notification struct {
	// EventID is the provider's identifier of the failure event.
	EventID string `json:"event_id"`

	// Domain is the sending domain the event belongs to.
	Domain string `json:"domain"`

	// Recipient is the address that bounced.
	Recipient string `json:"recipient"`

	// MessageID identifies the original message.
	MessageID string `json:"message_id"`

	// ReportID is the Message-Id of the submitted report.
	ReportID string `json:"report_id"`

	// NotifiedAt is when the report was accepted.
	NotifiedAt time.Time `json:"notified_at"`
}
