package client

import (
	"context"

	"github.com/KatnessChen/MaraMap-Backend/internal/api"
)

// Ingest submits a post. Submitting the same source id again answers
// with the id of the existing post.
func (c *Client) Ingest(ctx context.Context, payload api.IngestPayload) (*api.IngestResponse, string, error) {
	var resp api.IngestResponse
	correlation, err := c.post(ctx, c.url().
		setPath(api.IngestRoute).
		build(), payload, &resp)
	if err != nil {
		return nil, correlation, err
	}
	return &resp, correlation, nil
}

// Created reports whether the server stored a new post.
func Created(resp *api.IngestResponse) bool {
	return resp != nil && resp.Message == api.MessageAccepted
}
