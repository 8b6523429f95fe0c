package mailgun

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nhle/mg2dsn/internal/logger"
	"github.com/nhle/mg2dsn/internal/model"
)

func bouncePath(domain, recipient string) string {
	return domainPath(domain, "/bounces/"+recipient)
}

// GetBounce returns the suppression record for recipient. Any status other
// than 200 means "no suppression" and yields a nil record.
func (c *Client) GetBounce(
	ctx context.Context,
	domain string,
	recipient string,
) (*model.SuppressionRecord, error) {
	address := strings.ToLower(recipient)

	bounce, err := c.sdk.GetBounce(ctx, domain, address)
	if err != nil {
		status, err := c.fromSDK(http.MethodGet, bouncePath(domain, address), err)
		if status == 0 || status == http.StatusUnauthorized {
			return nil, fmt.Errorf("looking up bounce for %s: %w", recipient, err)
		}
		logger.Debug("no bounce record", "recipient", recipient, "status", status)
		return nil, nil
	}

	return &model.SuppressionRecord{
		Address:   bounce.Address,
		Code:      fmt.Sprint(bounce.Code),
		Error:     bounce.Error,
		CreatedAt: time.Time(bounce.CreatedAt).UTC().Format(time.RFC1123Z),
	}, nil
}

// DeleteBounce clears the suppression for recipient. A 404 means it is
// already gone and is not an error.
func (c *Client) DeleteBounce(ctx context.Context, domain string, recipient string) error {
	address := strings.ToLower(recipient)

	err := c.sdk.DeleteBounce(ctx, domain, address)
	if err == nil {
		return nil
	}

	status, err := c.fromSDK(http.MethodDelete, bouncePath(domain, address), err)
	if status == http.StatusNotFound {
		return nil
	}
	return fmt.Errorf("deleting bounce for %s: %w", recipient, err)
}
