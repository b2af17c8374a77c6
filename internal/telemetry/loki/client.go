// Package loki pushes bank events to Grafana Loki.
package loki

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const defaultJob = "smartbanker"

// PushRequest is the Loki push API request body (v1).
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is a single stream with labels and log entries.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"` // each entry is [timestamp_ns, log_line]
}

// labelSanitize replaces characters we keep out of label values.
var labelSanitize = regexp.MustCompile(`[^a-zA-Z0-9_\-:]`)

// eventFields are the parts of an event JSON used for labels and timestamp. Usernames are kept out
// of labels to bound stream cardinality; they stay in the line.
type eventFields struct {
	EventType string `json:"eventType"`
	Source    string `json:"source"`
	CreatedAt string `json:"createdAt"`
}

// Client pushes lines to one Loki instance.
type Client struct {
	BaseURL    string
	Job        string
	HTTPClient *http.Client
	// TenantID is sent as X-Scope-OrgID for multi-tenant Loki; empty omits the header.
	TenantID string
	// Retries and RetryBase bound the exponential backoff applied to transport errors, 429 and 5xx.
	Retries   uint64
	RetryBase time.Duration
}

// NewClient returns a Client for baseURL (e.g. http://localhost:3100).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		Job:        defaultJob,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Retries:    3,
		RetryBase:  250 * time.Millisecond,
	}
}

// PushEventJSON pushes an event JSON (a Kafka message value) with labels taken from it.
// If parsing fails, the raw line is pushed with the current time and only the job label.
func (c *Client) PushEventJSON(ctx context.Context, rawJSON []byte) error {
	labels := map[string]string{}
	ts := time.Now().UTC()
	var fields eventFields
	if err := json.Unmarshal(rawJSON, &fields); err == nil {
		if fields.EventType != "" {
			labels["event_type"] = fields.EventType
		}
		if fields.Source != "" {
			labels["source"] = fields.Source
		}
		if t, err := time.Parse(time.RFC3339Nano, fields.CreatedAt); err == nil {
			ts = t
		}
	}
	return c.PushEvent(ctx, ts, string(rawJSON), labels)
}

// PushEvent sends one line at timestamp with the job label plus labels.
// Returns an error if every attempt fails or Loki rejects the push with a 4xx.
func (c *Client) PushEvent(ctx context.Context, timestamp time.Time, line string, labels map[string]string) error {
	if c.BaseURL == "" {
		return errors.New("loki: base URL is empty")
	}
	payload, err := json.Marshal(PushRequest{Streams: []Stream{{
		Stream: c.streamLabels(labels),
		Values: [][]string{{strconv.FormatInt(timestamp.UnixNano(), 10), line}},
	}}})
	if err != nil {
		return err
	}
	backoff := retry.WithMaxRetries(c.Retries, retry.NewExponential(c.retryBase()))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.post(ctx, payload)
	})
}

func (c *Client) streamLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		if sanitized := labelSanitize.ReplaceAllString(strings.TrimSpace(v), "_"); sanitized != "" {
			out[k] = sanitized
		}
	}
	out["job"] = c.Job
	return out
}

func (c *Client) retryBase() time.Duration {
	if c.RetryBase <= 0 {
		return 250 * time.Millisecond
	}
	return c.RetryBase
}

// post makes one push attempt. Failures worth repeating are marked retryable.
func (c *Client) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/loki/api/v1/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.TenantID != "" {
		req.Header.Set("X-Scope-OrgID", c.TenantID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return retry.RetryableError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.RetryableError(fmt.Errorf("loki: push returned %s", resp.Status))
	default:
		return fmt.Errorf("loki: push returned %s", resp.Status)
	}
}
