// Package dsn builds RFC 3464 delivery status notifications for failed
// provider events.
package dsn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/google/uuid"
	"github.com/osteele/liquid"

	"github.com/nhle/mg2dsn/internal/model"
)

const (
	// Subject of every generated report.
	Subject = "Delivery Status Notification: Deferred Bounce"

	// FinalStatus is reported for every recipient.
	FinalStatus = "5.1.0 (Remote SMTP server has rejected address)"

	// UnknownMTA stands in when the event names no remote MX host.
	UnknownMTA = "no-host.invalid"

	noSubject = "(no subject)"
)

// ErrMissingField is wrapped by Assemble when the event lacks data a
// report cannot be built without.
var ErrMissingField = errors.New("missing required field")

// Report is a synthesized bounce ready to be submitted.
type Report struct {
	// To is the bounce recipient: the sender of the original message.
	To string

	MessageID         string
	OriginalMessageID string

	// Raw is the complete multipart/report message.
	Raw []byte
}

// Assembler builds reports for one domain.
type Assembler struct {
	domain  string
	now     func() time.Time
	counter uint64
}

// NewAssembler creates an Assembler whose reports come from
// bounce-generator@domain.
func NewAssembler(domain string) *Assembler {
	return &Assembler{domain: domain, now: time.Now}
}

// From returns the fixed bounce generator address for the domain.
func (a *Assembler) From() string {
	return fmt.Sprintf(`"Bounce Generator" <bounce-generator@%s>`, a.domain)
}

// nextMessageID returns a fresh Message-Id; the counter keeps ids issued
// within one run distinguishable at a glance.
func (a *Assembler) nextMessageID() string {
	a.counter++
	return fmt.Sprintf("<mg2dsn.%d.%s@%s>", a.counter, uuid.NewString(), a.domain)
}

// Assemble builds the multipart/report for e with original embedded.
func (a *Assembler) Assemble(e model.FailureEvent, original *Original) (*Report, error) {
	originalID := e.MessageID()
	if originalID == "" {
		return nil, fmt.Errorf("event %s: message-id: %w", e.ID, ErrMissingField)
	}

	to := bounceRecipient(e)
	if to == "" {
		return nil, fmt.Errorf("event %s: envelope sender or from header: %w", e.ID, ErrMissingField)
	}

	if e.DeliveryStatus == nil {
		return nil, fmt.Errorf("event %s: delivery-status: %w", e.ID, ErrMissingField)
	}

	if original == nil {
		original = ParseOriginal(FallbackOriginal, true)
	}

	targets := e.Recipient
	if e.Envelope != nil && e.Envelope.Targets != "" {
		targets = e.Envelope.Targets
	}

	subject := noSubject
	switch {
	case e.Message != nil && e.Message.Headers.Subject != "":
		subject = e.Message.Headers.Subject
	case original.Subject() != "" && !original.Fallback:
		subject = original.Subject()
	}

	now := a.now()
	messageID := a.nextMessageID()

	var h mail.Header
	setOrdered(&h.Header, [][2]string{
		{"MIME-Version", "1.0"},
		{"To", to},
		{"From", a.From()},
		{"Message-Id", messageID},
		{"In-Reply-To", angle(originalID)},
		{"References", angle(originalID)},
	})
	h.SetSubject(Subject)
	h.SetDate(now)
	h.SetContentType("multipart/report", map[string]string{"report-type": "delivery-status"})

	var buf bytes.Buffer
	w, err := message.CreateWriter(&buf, h.Header)
	if err != nil {
		return nil, fmt.Errorf("creating report writer: %w", err)
	}

	text, err := render(explanation, liquid.Bindings{
		"domain":    a.domain,
		"sender":    to,
		"recipient": targets,
		"subject":   subject,
	})
	if err != nil {
		return nil, err
	}
	if err := writeTextPart(w, text); err != nil {
		return nil, fmt.Errorf("writing explanation part: %w", err)
	}

	if err := a.writeStatusPart(w, e, originalID, targets, now); err != nil {
		return nil, fmt.Errorf("writing delivery-status part: %w", err)
	}

	if err := writeOriginalPart(w, original); err != nil {
		return nil, fmt.Errorf("writing original message part: %w", err)
	}

	eventJSON, err := e.PrettyJSON()
	if err != nil {
		return nil, err
	}
	tail, err := render(trailer, liquid.Bindings{"event": eventJSON})
	if err != nil {
		return nil, err
	}
	if err := writeTextPart(w, tail); err != nil {
		return nil, fmt.Errorf("writing event part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing report: %w", err)
	}

	return &Report{
		To:                to,
		MessageID:         messageID,
		OriginalMessageID: originalID,
		Raw:               buf.Bytes(),
	}, nil
}

// bounceRecipient is the envelope sender, or the original From header
// when no envelope could be resolved.
func bounceRecipient(e model.FailureEvent) string {
	if e.Envelope != nil && strings.TrimSpace(e.Envelope.Sender) != "" {
		return strings.TrimSpace(e.Envelope.Sender)
	}
	if e.Message != nil {
		return strings.TrimSpace(e.Message.Headers.From)
	}
	return ""
}

func (a *Assembler) writeStatusPart(
	w *message.Writer,
	e model.FailureEvent,
	originalID string,
	targets string,
	arrival time.Time,
) error {
	var ph message.Header
	ph.SetContentType("message/delivery-status", nil)
	pw, err := w.CreatePart(ph)
	if err != nil {
		return err
	}

	var perMessage textproto.Header
	setOrderedText(&perMessage, [][2]string{
		{"Reporting-MTA", "dns;" + a.domain},
		{"Arrival-Date", arrival.Format(time.RFC1123Z)},
		{"Original-Envelope-Id", originalID},
	})

	remoteMTA := UnknownMTA
	if e.DeliveryStatus.MXHost != "" {
		remoteMTA = e.DeliveryStatus.MXHost
	}

	var perRecipient textproto.Header
	setOrderedText(&perRecipient, [][2]string{
		{"Original-Recipient", "rfc822;" + targets},
		{"Final-Recipient", "rfc822;" + targets},
		{"Action", "failed"},
		{"Status", FinalStatus},
		{"Remote-MTA", "dns;" + remoteMTA},
		{"Diagnostic-Code", diagnosticCode(e.DeliveryStatus)},
	})

	if err := textproto.WriteHeader(pw, perMessage); err != nil {
		return err
	}
	if err := textproto.WriteHeader(pw, perRecipient); err != nil {
		return err
	}
	return pw.Close()
}

// diagnosticCode renders "smtp;550" followed by the remote text, if any,
// flattened onto one line.
func diagnosticCode(ds *model.DeliveryStatus) string {
	code := fmt.Sprintf("smtp;%d", ds.Code)
	msg := strings.Join(strings.Fields(ds.Message), " ")
	if msg == "" {
		return code
	}
	return code + " " + msg
}

func writeTextPart(w *message.Writer, text string) error {
	var h message.Header
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(pw, text); err != nil {
		return err
	}
	return pw.Close()
}

func writeOriginalPart(w *message.Writer, original *Original) error {
	var h message.Header
	h.SetContentType("message/rfc822", nil)
	h.Set("Content-Description", "Undelivered Message")

	pw, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := pw.Write(original.Raw); err != nil {
		return err
	}
	return pw.Close()
}

// setOrdered adds fields so they are written in the order given; the
// header writer emits fields last-added first.
func setOrdered(h *message.Header, fields [][2]string) {
	setOrderedText(&h.Header, fields)
}

// setOrderedText adds raw fields so keys such as Reporting-MTA keep their
// spelling instead of being canonicalised to Reporting-Mta.
func setOrderedText(h *textproto.Header, fields [][2]string) {
	for i := len(fields) - 1; i >= 0; i-- {
		h.Del(fields[i][0])
		h.AddRaw([]byte(fields[i][0] + ": " + oneLine(fields[i][1]) + "\r\n"))
	}
}

func oneLine(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func angle(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, "<") && strings.HasSuffix(id, ">") {
		return id
	}
	return "<" + id + ">"
}
