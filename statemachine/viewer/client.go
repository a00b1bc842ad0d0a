package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Client talks to a viewer Server. It also serves as the HTTP Sink of a Publisher.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL. A nil rt uses
// http.DefaultTransport.
func NewClient(baseURL string, rt http.RoundTripper) *Client {
	if rt == nil {
		rt = http.DefaultTransport
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: rt},
	}
}

// NewHTTPSink creates a sink posting snapshots to the server at baseURL.
func NewHTTPSink(baseURL string, rt http.RoundTripper) Sink {
	return NewClient(baseURL, rt)
}

// Publish posts an encoded snapshot.
func (c *Client) Publish(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/publish", bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	rsp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}

	defer rsp.Body.Close() //nolint:errcheck

	if rsp.StatusCode != http.StatusNoContent {
		return statusError(rsp)
	}

	return nil
}

// List returns every live snapshot keyed by machine name.
func (c *Client) List(ctx context.Context) (map[string][]StateInfo, error) {
	var all map[string][]StateInfo

	err := c.getJSON(ctx, "/get_fsms", &all)
	if err != nil {
		return nil, err
	}

	return all, nil
}

// Names returns the live machine names in natural order.
func (c *Client) Names(ctx context.Context) ([]string, error) {
	var names []string

	err := c.getJSON(ctx, "/get_fsm_names", &names)
	if err != nil {
		return nil, err
	}

	return names, nil
}

// Get returns the snapshot of one machine. The boolean is false when the
// server has no live snapshot for name.
func (c *Client) Get(ctx context.Context, name string) ([]StateInfo, bool, error) {
	var raw json.RawMessage

	err := c.getJSON(ctx, "/get_fsm/"+url.PathEscape(name), &raw)
	if err != nil {
		return nil, false, err
	}

	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return nil, false, nil
	}

	var infos []StateInfo

	err = json.Unmarshal(raw, &infos)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot of %s: %w", name, err)
	}

	return infos, true, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")

	rsp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query viewer: %w", err)
	}

	defer rsp.Body.Close() //nolint:errcheck

	if rsp.StatusCode != http.StatusOK {
		return statusError(rsp)
	}

	err = json.NewDecoder(rsp.Body).Decode(out)
	if err != nil {
		return fmt.Errorf("failed to decode viewer response from %s: %w", path, err)
	}

	return nil
}

func statusError(rsp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(rsp.Body, 512))

	return fmt.Errorf("%w: %s %s: %d %s",
		ErrUnexpectedStatus, rsp.Request.Method, rsp.Request.URL.Path, rsp.StatusCode, strings.TrimSpace(string(body)))
}
