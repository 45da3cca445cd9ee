package archipanion

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Schemas lists every configured schema.
func (c *Client) Schemas(ctx context.Context) (infos []SchemaInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("schemas.list", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/schemas", nil, &infos)
	return infos, err
}

// Schema describes one schema.
func (c *Client) Schema(ctx context.Context, name string) (info SchemaInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("schemas.get", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/schemas/"+url.PathEscape(name), nil, &info)
	return info, err
}

// InitializeSchema creates the storage entities of a schema and reports how many were created.
func (c *Client) InitializeSchema(ctx context.Context, name string) (created int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("schemas.init", start, err) }()

	var resp struct {
		Created int `json:"created"`
	}
	err = c.do(ctx, http.MethodPost, "/api/schemas/"+url.PathEscape(name)+"/init", nil, &resp)
	return resp.Created, err
}

// DropSchema deletes every stored retrievable and descriptor of a schema and
// reports how many storage entities were torn down. The schema stays configured.
func (c *Client) DropSchema(ctx context.Context, name string) (dropped int, err error) {
	start := time.Now()
	defer func() { c.obs.observe("schemas.drop", start, err) }()

	var resp struct {
		Dropped int `json:"dropped"`
	}
	err = c.do(ctx, http.MethodDelete, "/api/schemas/"+url.PathEscape(name), nil, &resp)
	return resp.Dropped, err
}
