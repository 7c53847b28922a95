package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/iudanet/offsync/pkg/api"
)

func resourcePath(entityType string) string {
	return "/api/v1/" + url.PathEscape(entityType)
}

func itemPath(entityType, id string) string {
	return resourcePath(entityType) + "/" + url.PathEscape(id)
}

// Create creates an entity and returns its canonical representation,
// including the server-assigned id
func (c *Client) Create(ctx context.Context, token, entityType string, payload json.RawMessage, idempotencyKey string) (*api.Resource, error) {
	var resp api.Resource
	err := c.do(ctx, request{
		method:         http.MethodPost,
		path:           resourcePath(entityType),
		body:           payload,
		result:         &resp,
		bearer:         token,
		idempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s failed: %w", entityType, err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("create %s failed: response without id", entityType)
	}
	return &resp, nil
}

// Update replaces an entity and returns its canonical representation
func (c *Client) Update(ctx context.Context, token, entityType, id string, payload json.RawMessage, idempotencyKey string) (*api.Resource, error) {
	var resp api.Resource
	err := c.do(ctx, request{
		method:         http.MethodPut,
		path:           itemPath(entityType, id),
		body:           payload,
		result:         &resp,
		bearer:         token,
		idempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s failed: %w", entityType, id, err)
	}
	return &resp, nil
}

// Delete deletes an entity
func (c *Client) Delete(ctx context.Context, token, entityType, id, idempotencyKey string) error {
	err := c.do(ctx, request{
		method:         http.MethodDelete,
		path:           itemPath(entityType, id),
		bearer:         token,
		idempotencyKey: idempotencyKey,
	})
	if err != nil {
		return fmt.Errorf("delete %s/%s failed: %w", entityType, id, err)
	}
	return nil
}

// Get fetches one entity
func (c *Client) Get(ctx context.Context, token, entityType, id string) (*api.Resource, error) {
	var resp api.Resource
	err := c.do(ctx, request{method: http.MethodGet, path: itemPath(entityType, id), bearer: token, result: &resp})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s failed: %w", entityType, id, err)
	}
	return &resp, nil
}

// List fetches every entity of the type
func (c *Client) List(ctx context.Context, token, entityType string) ([]api.Resource, error) {
	var resp api.ResourceList
	err := c.do(ctx, request{method: http.MethodGet, path: resourcePath(entityType), bearer: token, result: &resp})
	if err != nil {
		return nil, fmt.Errorf("list %s failed: %w", entityType, err)
	}
	return resp.Items, nil
}
