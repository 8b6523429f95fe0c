package mailgun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/mg2dsn/internal/model"
)

// DefaultPageSize is the number of events requested per page.
const DefaultPageSize = 100

// EventFeed is a lazy cursor over pages of permanent failure events.
// Each call to Next performs exactly one request; the feed ends at the
// first page whose item list is empty.
type EventFeed struct {
	client *Client
	next   string
	query  url.Values
	pages  int
	done   bool
}

// Failures returns a feed of permanent failures for domain, oldest first,
// starting at begin.
func (c *Client) Failures(domain string, begin time.Time, pageSize int) *EventFeed {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	query := url.Values{}
	query.Set("event", "failed")
	query.Set("severity", "permanent")
	query.Set("begin", begin.UTC().Format(time.RFC1123Z))
	query.Set("ascending", "yes")
	query.Set("limit", strconv.Itoa(pageSize))

	return &EventFeed{
		client: c,
		next:   domainPath(domain, "/events"),
		query:  query,
	}
}

// Next fetches the next page. It returns an empty batch once the feed is
// exhausted; any transport, status or decoding failure is returned as-is.
func (f *EventFeed) Next(ctx context.Context) ([]model.FailureEvent, error) {
	if f.done {
		return nil, nil
	}

	page, err := f.client.eventPage(ctx, f.next, f.query)
	if err != nil {
		return nil, err
	}
	f.pages++

	// Only the first request carries the filter; paging URLs embed it.
	f.query = nil

	if len(page.Items) == 0 {
		f.done = true
		return nil, nil
	}

	if page.Paging.Next == "" {
		f.done = true
	}
	f.next = page.Paging.Next

	return page.Items, nil
}

// Done reports whether the feed has been exhausted.
func (f *EventFeed) Done() bool {
	return f.done
}

// Pages returns the number of pages fetched so far.
func (f *EventFeed) Pages() int {
	return f.pages
}

// FindByMessageID returns the events recorded for one message, oldest
// first. The query uses the provider's default order, newest first from
// now backwards, and the page is reversed so the first item is normally
// the original "accepted" submission.
func (c *Client) FindByMessageID(
	ctx context.Context,
	domain string,
	messageID string,
) ([]model.FailureEvent, error) {
	query := url.Values{}
	query.Set("message-id", strings.Trim(strings.TrimSpace(messageID), "<>"))

	page, err := c.eventPage(ctx, domainPath(domain, "/events"), query)
	if err != nil {
		return nil, fmt.Errorf("looking up events for message %s: %w", messageID, err)
	}
	slices.Reverse(page.Items)
	return page.Items, nil
}

func (c *Client) eventPage(
	ctx context.Context,
	target string,
	query url.Values,
) (*model.EventPage, error) {
	status, body, err := c.getJSON(ctx, target, query)
	if err != nil {
		return nil, fmt.Errorf("fetching event page: %w", err)
	}

	if status != http.StatusOK {
		return nil, &UnexpectedResponseError{
			Method:     http.MethodGet,
			URL:        redactURL(c.resolve(target, query)),
			StatusCode: status,
			Body:       string(body),
		}
	}

	var page model.EventPage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parsing event page: %w", err)
	}
	return &page, nil
}
