// Package client keeps a mirror of a hub resource up to date by consuming
// its subscription stream.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"gihan9a/braidtrack/pkg/braidproto"
	"gihan9a/braidtrack/pkg/mirror"
)

var (
	// ErrUnsupportedUpdate is returned for updates the mirror cannot apply
	ErrUnsupportedUpdate = errors.New("unsupported update")
	// ErrUnexpectedStatus is returned when the hub refuses a request
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// Client mirrors a single resource
type Client struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	applier    *mirror.Applier

	mu      sync.Mutex
	root    mirror.Node
	version string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client for the resource at url. notify is called for every
// leaf the mirror receives, while the client lock is held, so it must not
// call back into the client.
func New(url string, notify mirror.NotifyFunc, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		root:       mirror.Node{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.applier = mirror.NewApplier(notify, mirror.WithLogger(c.logger))
	return c
}

// Fetch reads the current snapshot once and applies it
func (c *Client) Fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error fetching %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading snapshot: %w", err)
	}

	return c.apply(&braidproto.Update{
		Version: resp.Header.Get("Version"),
		Body:    body,
	})
}

// Run subscribes to the resource and applies every update until ctx is
// done or the hub closes the stream.
func (c *Client) Run(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Subscribe", "true")
	req.Header.Set("Patch-Format", braidproto.MergeTypeTracked)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error subscribing to %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != braidproto.StatusSubscribed && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	c.logger.Info("Subscribed", "url", c.url)
	reader := braidproto.NewReader(resp.Body)
	for {
		u, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err == io.EOF {
				c.logger.Info("Subscription closed", "url", c.url)
				return nil
			}
			return fmt.Errorf("error reading update: %w", err)
		}
		if err := c.apply(u); err != nil {
			return err
		}
	}
}

func (c *Client) apply(u *braidproto.Update) error {
	if len(u.Patches) > 0 {
		return fmt.Errorf("%w: range patches", ErrUnsupportedUpdate)
	}
	if u.MergeType != "" && u.MergeType != braidproto.MergeTypeTracked {
		return fmt.Errorf("%w: merge type %q", ErrUnsupportedUpdate, u.MergeType)
	}

	var values map[string]any
	if err := json.Unmarshal(u.Body, &values); err != nil {
		return fmt.Errorf("error decoding update %s: %w", u.Version, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !u.IsSnapshot() && !slices.Contains(u.Parents, c.version) {
		c.logger.Warn("Diff does not follow the mirrored version", "version", u.Version, "parents", u.Parents, "have", c.version)
	}

	leaves := c.applier.Apply(c.root, values)
	c.version = u.Version
	c.logger.Debug("Applied update", "version", u.Version, "leaves", leaves, "snapshot", u.IsSnapshot())
	return nil
}

// Version returns the version of the last applied update
func (c *Client) Version() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.version
}

// Lookup reads a mirrored value by dotted path
func (c *Client) Lookup(path string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root.Lookup(path)
}
