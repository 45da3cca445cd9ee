package archipanion

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Extract starts the named pipeline of schema.
func (c *Client) Extract(ctx context.Context, schema, pipeline string) (job Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("extract", start, err) }()

	path := "/api/" + url.PathEscape(schema) + "/extract/" + url.PathEscape(pipeline)
	err = c.do(ctx, http.MethodPost, path, nil, &job)
	return job, err
}

// Job fetches the state of a job.
func (c *Client) Job(ctx context.Context, id uuid.UUID) (job Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("jobs.get", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/jobs/"+id.String(), nil, &job)
	return job, err
}

// Jobs lists the jobs the server still retains.
func (c *Client) Jobs(ctx context.Context) (jobs []Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("jobs.list", start, err) }()

	err = c.do(ctx, http.MethodGet, "/api/jobs", nil, &jobs)
	return jobs, err
}

// CancelJob stops a job.
func (c *Client) CancelJob(ctx context.Context, id uuid.UUID) (job Job, err error) {
	start := time.Now()
	defer func() { c.obs.observe("jobs.cancel", start, err) }()

	err = c.do(ctx, http.MethodDelete, "/api/jobs/"+id.String(), nil, &job)
	return job, err
}

// Wait polls a job every interval until it reaches a final state or ctx ends.
func (c *Client) Wait(ctx context.Context, id uuid.UUID, interval time.Duration) (Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return Job{}, err
		}
		if job.Status.Final() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}
