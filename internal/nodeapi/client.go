package nodeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
)

// ErrNotRunning is returned by Client.Tunnel when the named tunnel is not
// running in the process behind the socket.
var ErrNotRunning = errors.New("nodeapi: tunnel not running")

// Client talks to a running wgtunnel process over its control socket.
type Client struct {
	socketPath string
	http       *http.Client
}

// NewClient creates a Client that connects via the Unix socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DisableKeepAlives: true,
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// socketURL returns a URL for the given path using the Unix socket.
func socketURL(path string) string {
	return "http://localhost" + path
}

// Tunnels returns the status of every running tunnel.
func (c *Client) Tunnels(ctx context.Context) ([]TunnelStatus, error) {
	var out []TunnelStatus
	if err := c.do(ctx, http.MethodGet, "/v1/tunnels", http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tunnel returns the status of the running tunnel called name.
func (c *Client) Tunnel(ctx context.Context, name string) (*TunnelStatus, error) {
	var out TunnelStatus
	err := c.do(ctx, http.MethodGet, "/v1/tunnels/"+url.PathEscape(name), http.StatusOK, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Reconcile asks the process to reconcile its tunnels with the store now.
func (c *Client) Reconcile(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/reconcile", http.StatusAccepted, nil)
}

func (c *Client) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, socketURL(path), nil)
	if err != nil {
		return fmt.Errorf("nodeapi: %s %s: %w", method, path, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("nodeapi: wgtunnel not running or socket unavailable at %s: %w", c.socketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return ErrNotRunning
	}
	if resp.StatusCode != want {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
		if body.Error == "" {
			body.Error = resp.Status
		}
		return fmt.Errorf("nodeapi: %s %s: %s", method, path, body.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("nodeapi: decode %s: %w", path, err)
	}
	return nil
}
