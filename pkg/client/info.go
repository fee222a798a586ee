package client

import (
	"context"
	"net/http"

	"github.com/KatnessChen/MaraMap-Backend/internal/api"
	"github.com/KatnessChen/MaraMap-Backend/internal/buildinfo"
)

func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}

func (c *Client) Health(ctx context.Context) (*api.HealthCheckResponse, string, error) {
	var health api.HealthCheckResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.HealthCheckRoute).
		build(), &health)
	return &health, correlation, err
}

// Ready reports nil if the server can reach its store.
func (c *Client) Ready(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url().
		setPath(api.ReadinessRoute).
		build(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return correlationFromResponse(resp), parseErrorResponse(resp)
	}
	return correlationFromResponse(resp), nil
}
