package mailgun

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nhle/mg2dsn/internal/logger"
)

// FetchStoredMessage retrieves the raw MIME text of a stored message.
// ok is false when the provider no longer has it (any non-200 status).
func (c *Client) FetchStoredMessage(
	ctx context.Context,
	storageURL string,
) (body string, ok bool, err error) {
	msg, err := c.sdk.GetStoredMessageRaw(ctx, storageURL)
	if err != nil {
		status, err := c.fromSDK(http.MethodGet, storageURL, err)
		if status == 0 || status == http.StatusUnauthorized {
			return "", false, fmt.Errorf("fetching stored message: %w", err)
		}
		logger.Debug("stored message unavailable", "url", redactURL(storageURL), "status", status)
		return "", false, nil
	}
	return msg.BodyMime, true, nil
}
