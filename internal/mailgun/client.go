// Package mailgun is the client for the parts of the Mailgun v3 API that
// bounce synthesis needs: the event log, the bounce suppression list,
// message storage and raw MIME sending.
//
// Suppressions, stored messages and sending go through mailgun-go. The
// event log is read as raw JSON so every provider field survives into the
// report trailer.
package mailgun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	mailgo "github.com/mailgun/mailgun-go/v5"

	"github.com/nhle/mg2dsn/internal/httpretry"
	"github.com/nhle/mg2dsn/internal/model"
)

// System is the credential system name the API key is filed under.
const System = "api.mailgun.net"

// DefaultBaseURL is the US region API host.
const DefaultBaseURL = "https://api.mailgun.net"

// Client talks to the Mailgun API with Basic Auth ("api", key).
type Client struct {
	sdk        *mailgo.Client
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Mailgun API client. Idempotent requests are
// retried according to cfg.MaxRetries.
func NewClient(cfg model.APIConfig, apiKey string) *Client {
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTPClient(cfg.BaseURL, apiKey, &http.Client{
		Timeout:   timeout,
		Transport: httpretry.NewTransport(nil, cfg.MaxRetries),
	})
}

// NewClientWithHTTPClient creates a client whose requests, SDK calls
// included, all go through hc.
func NewClientWithHTTPClient(baseURL, apiKey string, hc *http.Client) *Client {
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v3")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	sdk := mailgo.NewMailgun(apiKey)
	sdk.SetAPIBase(baseURL)
	sdk.SetHTTPClient(hc)

	return &Client{
		sdk:        sdk,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: hc,
	}
}

// getJSON fetches target (a path below the base URL or an absolute URL
// handed out by the API) with query appended and reads the whole body.
// It only fails on transport errors and 401; other statuses are left to
// the caller.
func (c *Client) getJSON(ctx context.Context, target string, query url.Values) (int, []byte, error) {
	fullURL := c.resolve(target, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth("api", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request GET %s: %w", redactURL(fullURL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return 0, nil, authError(req.URL.Host, http.MethodGet, req.URL.Path)
	}
	return resp.StatusCode, body, nil
}

// fromSDK maps an SDK error onto this package's error types. status is the
// HTTP status the provider answered with, or 0 when no response arrived.
func (c *Client) fromSDK(method, target string, err error) (status int, mapped error) {
	var resp *mailgo.UnexpectedResponseError
	if !errors.As(err, &resp) {
		return 0, err
	}

	fullURL := c.resolve(target, nil)
	if resp.Actual == http.StatusUnauthorized {
		return resp.Actual, authError(hostOf(fullURL), method, target)
	}
	return resp.Actual, &UnexpectedResponseError{
		Method:     method,
		URL:        redactURL(fullURL),
		StatusCode: resp.Actual,
		Body:       string(resp.Data),
	}
}

func authError(host, method, path string) error {
	return &AuthError{
		Host: host,
		Message: fmt.Sprintf(
			"authentication failed (401) on %s %s: check the API key",
			method, path,
		),
	}
}

func (c *Client) resolve(target string, query url.Values) string {
	full := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		full = c.baseURL + target
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(full, "?") {
			sep = "&"
		}
		full += sep + query.Encode()
	}
	return full
}

// redactURL drops any userinfo before a URL ends up in an error.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	return u.String()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}

func domainPath(domain, suffix string) string {
	return "/v3/" + url.PathEscape(domain) + suffix
}
