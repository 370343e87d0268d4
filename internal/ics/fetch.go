package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"strings"
	"time"

	appLog "icaltool/internal/log"
	"icaltool/internal/model"
	"icaltool/internal/provider"
)

const defaultFetchTimeout = 15 * time.Second

// Source represents a single ICS feed.
type Source struct {
	// ID is an internal identifier (e.g., config ICS ID).
	ID string
	// Name overrides the feed's own calendar name when set.
	Name string
	// URL is an http(s) or webcal URL, a file:// URL, or a local path.
	URL string
	// Color overrides the feed's own calendar color when set.
	Color *model.Color
}

// Remote reports whether the feed is fetched over the network.
func (s Source) Remote() bool {
	u := strings.ToLower(s.URL)
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "webcal://")
}

// FetchResult contains the outcome of fetching a single ICS source.
type FetchResult struct {
	Source Source
	Body   []byte
}

// Fetcher reads ICS feeds from disk or over HTTP. Nothing is cached between
// calls.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose HTTP requests time out after timeout,
// or a default when timeout is zero.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch reads one source. HTTP 401/403 and unreadable files are reported as
// provider.ErrAccessDenied.
func (f *Fetcher) Fetch(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, errors.New("source URL is empty")
	}
	if !src.Remote() {
		return f.fetchFile(src)
	}

	url := src.URL
	if strings.HasPrefix(strings.ToLower(url), "webcal://") {
		url = "https://" + url[len("webcal://"):]
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{}, err
	}
	req.Header.Set("Accept", "text/calendar")

	appLog.Debug("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", redactURL(src.URL), err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, err
		}
		appLog.Debug("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusUnauthorized, http.StatusForbidden:
		return FetchResult{}, fmt.Errorf("%w: %s returned %s", provider.ErrAccessDenied, redactURL(src.URL), resp.Status)

	default:
		return FetchResult{}, fmt.Errorf("fetch %s: %s", redactURL(src.URL), resp.Status)
	}
}

func (f *Fetcher) fetchFile(src Source) (FetchResult, error) {
	path := strings.TrimPrefix(src.URL, "file://")
	body, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return FetchResult{}, fmt.Errorf("%w: %v", provider.ErrAccessDenied, err)
		}
		return FetchResult{}, err
	}
	appLog.Debug("ics file read", "id", src.ID, "path", path, "bytes", len(body))
	return FetchResult{Source: src, Body: body}, nil
}

// redactURL hides sensitive parts of an ICS URL for logging purposes.
// Example:
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
//
// Local paths are returned unchanged.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return u
	}
	if strings.HasPrefix(u, "file://") {
		return u
	}
	i += 3

	// Find next slash after host, dropping any user info.
	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	host := u[i:j]
	if at := strings.LastIndexByte(host, '@'); at >= 0 {
		host = host[at+1:]
	}
	return u[:i] + host + redactedSuffix
}
