// Package caldav reads calendars and events from a CalDAV server.
package caldav

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/emersion/go-webdav/caldav"

	"icaltool/internal/model"
)

const defaultTimeout = 30 * time.Second

// Config describes one CalDAV account.
type Config struct {
	// ID is the configured source identifier.
	ID       string
	URL      string
	Username string
	Password string
	// Color is applied to every calendar of the account, since CalDAV
	// collections carry no standard color property.
	Color *model.Color
	// Timeout bounds each HTTP request. Zero means a default.
	Timeout time.Duration
}

// Client is a CalDAV client for one account.
type Client struct {
	cfg       Config
	transport *basicAuthTransport
	client    *caldav.Client
}

// NewClient creates a new CalDAV client. No request is made until first use.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg}
}

// IsConfigured returns true if the client has credentials
func (c *Client) IsConfigured() bool {
	return c.cfg.Username != "" && c.cfg.Password != ""
}

// connect establishes connection to CalDAV server
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	if c.cfg.URL == "" {
		return nil, fmt.Errorf("caldav %s: url is empty", c.cfg.ID)
	}

	c.transport = &basicAuthTransport{
		username: c.cfg.Username,
		password: c.cfg.Password,
	}
	httpClient := &http.Client{
		Transport: c.transport,
		Timeout:   c.cfg.Timeout,
	}

	client, err := caldav.NewClient(httpClient, c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// denied reports whether the server has answered 401 or 403 since connect.
func (c *Client) denied() bool {
	return c.transport != nil && c.transport.denied.Load()
}

// basicAuthTransport adds Basic Auth to HTTP requests and remembers whether
// the server refused them.
type basicAuthTransport struct {
	username string
	password string
	base     http.RoundTripper

	denied atomic.Bool
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.username != "" || t.password != "" {
		req.SetBasicAuth(t.username, t.password)
	}

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		t.denied.Store(true)
	}
	return resp, nil
}
