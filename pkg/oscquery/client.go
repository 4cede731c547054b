package oscquery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

const defaultClientTimeout = 2 * time.Second

// Client probes a peer's capability directory.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a directory client. A zero timeout uses the default.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// FetchHostInfo retrieves a peer's HOST_INFO document.
func (c *Client) FetchHostInfo(ctx context.Context, host string, port uint16) (*HostInfo, error) {
	var info HostInfo
	if err := c.getJSON(ctx, host, port, "/HOST_INFO", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// FetchTree retrieves a peer's full capability tree.
func (c *Client) FetchTree(ctx context.Context, host string, port uint16) (*Node, error) {
	var root Node
	if err := c.getJSON(ctx, host, port, "/", &root); err != nil {
		return nil, err
	}
	return &root, nil
}

func (c *Client) getJSON(ctx context.Context, host string, port uint16, path string, out any) error {
	url := "http://" + net.JoinHostPort(host, strconv.Itoa(int(port))) + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("oscquery: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("oscquery: fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("oscquery: fetch %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("oscquery: decode %s: %w", path, err)
	}
	return nil
}
