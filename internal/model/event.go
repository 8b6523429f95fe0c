package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Failure reasons reported by the provider that can warrant a bounce
// notification. Other reasons (e.g. "generic", "espblock") are ignored.
const (
	ReasonBounce         = "bounce"
	ReasonSuppressBounce = "suppress-bounce"
)

// EventFlags holds the boolean markers Mailgun attaches to each event.
type EventFlags struct {
	IsAuthenticated bool `json:"is-authenticated"`
	IsDelayedBounce bool `json:"is-delayed-bounce"`
	IsRouted        bool `json:"is-routed"`
	IsSystemTest    bool `json:"is-system-test"`
	IsTestMode      bool `json:"is-test-mode"`
}

// MessageHeaders is the subset of original message headers kept by the
// provider alongside the event.
type MessageHeaders struct {
	MessageID string `json:"message-id"`
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Subject   string `json:"subject,omitempty"`
}

// MessageInfo is the nested "message" block of an event.
type MessageInfo struct {
	Headers MessageHeaders `json:"headers"`
	Size    int64          `json:"size,omitempty"`
}

// Envelope is the SMTP envelope of the original submission.
type Envelope struct {
	Sender    string `json:"sender"`
	Targets   string `json:"targets"`
	Transport string `json:"transport,omitempty"`
	SendingIP string `json:"sending-ip,omitempty"`
}

// StorageRef points at the stored raw copy of the original message.
type StorageRef struct {
	URL string `json:"url"`
	Key string `json:"key,omitempty"`
}

// DeliveryStatus describes the remote SMTP outcome of the failed attempt.
type DeliveryStatus struct {
	Code         int    `json:"code"`
	Message      string `json:"message,omitempty"`
	Description  string `json:"description,omitempty"`
	MXHost       string `json:"mx-host,omitempty"`
	AttemptNo    int    `json:"attempt-no,omitempty"`
	EnhancedCode string `json:"enhanced-code,omitempty"`
}

// FailureEvent is a single item of the provider's event feed. It lives
// only for the duration of processing one item.
//
// The complete decoded JSON object is retained alongside the typed fields
// so the forensic trailer of a report reproduces every provider field,
// including the ones not modeled here.
type FailureEvent struct {
	ID             string          `json:"id"`
	Event          string          `json:"event"`
	Timestamp      float64         `json:"timestamp"`
	Recipient      string          `json:"recipient"`
	Reason         string          `json:"reason"`
	Severity       string          `json:"severity,omitempty"`
	Flags          EventFlags      `json:"flags"`
	Message        *MessageInfo    `json:"message,omitempty"`
	Envelope       *Envelope       `json:"envelope,omitempty"`
	Storage        *StorageRef     `json:"storage,omitempty"`
	DeliveryStatus *DeliveryStatus `json:"delivery-status,omitempty"`

	raw map[string]json.RawMessage
}

// eventFields avoids recursion into FailureEvent.UnmarshalJSON.
type eventFields FailureEvent

// UnmarshalJSON decodes the typed fields and keeps the raw object.
func (e *FailureEvent) UnmarshalJSON(data []byte) error {
	var fields eventFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = FailureEvent(fields)
	e.raw = raw
	return nil
}

// MarshalJSON emits the raw provider object, overlaid with any fields
// merged in from a correlated event.
func (e FailureEvent) MarshalJSON() ([]byte, error) {
	if e.raw == nil {
		return json.Marshal(eventFields(e))
	}
	return json.Marshal(e.raw)
}

// PrettyJSON returns the event as indented JSON for the report trailer.
func (e FailureEvent) PrettyJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding event %s: %w", e.ID, err)
	}
	return string(data), nil
}

// Time returns the event timestamp in UTC.
func (e FailureEvent) Time() time.Time {
	sec, frac := math.Modf(e.Timestamp)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// MessageID returns the original message identifier, or "" when the event
// has no nested message block.
func (e FailureEvent) MessageID() string {
	if e.Message == nil {
		return ""
	}
	return strings.TrimSpace(e.Message.Headers.MessageID)
}

// HasContext reports whether the event already carries both the storage
// reference and the envelope of the original submission.
func (e FailureEvent) HasContext() bool {
	return e.Storage != nil && e.Storage.URL != "" && e.Envelope != nil
}

// MergeOrigin copies the storage and envelope of the originating event
// into e, keeping the raw object in step.
func (e *FailureEvent) MergeOrigin(origin FailureEvent) {
	e.Storage = origin.Storage
	e.Envelope = origin.Envelope

	if e.raw == nil {
		return
	}
	for _, key := range []string{"storage", "envelope"} {
		if v, ok := origin.raw[key]; ok {
			e.raw[key] = v
			continue
		}
		var (
			data []byte
			err  error
		)
		switch key {
		case "storage":
			data, err = json.Marshal(origin.Storage)
		case "envelope":
			data, err = json.Marshal(origin.Envelope)
		}
		if err == nil {
			e.raw[key] = data
		}
	}
}

// Paging holds the provider-issued pagination cursors.
type Paging struct {
	Next     string `json:"next"`
	Previous string `json:"previous,omitempty"`
	First    string `json:"first,omitempty"`
	Last     string `json:"last,omitempty"`
}

// EventPage is one response from the events API.
type EventPage struct {
	Items  []FailureEvent `json:"items"`
	Paging Paging         `json:"paging"`
}
