package mailgun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	mailgo "github.com/mailgun/mailgun-go/v5"
)

// SendResult is the outcome of a messages.mime submission.
type SendResult struct {
	StatusCode int
	ID         string
	Message    string
}

// OK reports whether the provider accepted the message.
func (r *SendResult) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// SendMIME posts a complete MIME message through the domain's
// messages.mime endpoint, addressed to to. It is never retried. A non-2xx
// answer returns the result together with an UnexpectedResponseError.
func (c *Client) SendMIME(
	ctx context.Context,
	domain string,
	to string,
	mime []byte,
) (*SendResult, error) {
	m := mailgo.NewMIMEMessage(domain, io.NopCloser(bytes.NewReader(mime)), to)

	resp, err := c.sdk.Send(ctx, m)
	if err == nil {
		return &SendResult{
			StatusCode: http.StatusOK,
			ID:         resp.ID,
			Message:    resp.Message,
		}, nil
	}

	status, err := c.fromSDK(http.MethodPost, domainPath(domain, "/messages.mime"), err)
	if status == 0 || status == http.StatusUnauthorized {
		return nil, fmt.Errorf("sending message to %s: %w", to, err)
	}

	result := &SendResult{StatusCode: status}
	var respErr *UnexpectedResponseError
	if errors.As(err, &respErr) {
		var rejected struct {
			Message string `json:"message"`
		}
		if json.Unmarshal([]byte(respErr.Body), &rejected) == nil {
			result.Message = rejected.Message
		}
	}
	return result, err
}
