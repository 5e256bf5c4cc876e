// Package favicon looks up the icon of a destination site.
package favicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultTimeout = 3 * time.Second

var ErrNoFavicon = errors.New("favicon not found")

// Fetcher probes the conventional /favicon.ico location of a site.
type Fetcher struct {
	client *http.Client
}

// NewFetcher returns a Fetcher whose requests give up after timeout.
// A nil client gets one that refuses loopback, private and other
// non-public destinations.
func NewFetcher(client *http.Client, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Transport: publicTransport()}
	}

	c := *client
	c.Timeout = timeout

	return &Fetcher{client: &c}
}

// Fetch returns the absolute favicon URL of the site serving pageURL.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	const op = "adapter.favicon.Fetcher.Fetch"

	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("%s: failed to parse url: %w", op, err)
	}

	icon := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/favicon.ico"}).String()

	status, err := f.probe(ctx, http.MethodHead, icon)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	// Some servers do not implement HEAD.
	if status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented {
		status, err = f.probe(ctx, http.MethodGet, icon)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}

	if status < 200 || status > 299 {
		return "", fmt.Errorf("%s: status %d: %w", op, status, ErrNoFavicon)
	}

	return icon, nil
}

func (f *Fetcher) probe(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return resp.StatusCode, nil
}
