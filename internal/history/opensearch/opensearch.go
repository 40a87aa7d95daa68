// Package opensearch indexes run history into OpenSearch over its REST API.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/taskrun/internal/history"
)

// Sink writes one document per event into a per-type index named
// "<prefix>-<type>", e.g. "task-history-exec" and "task-history-file".
// Documents are routed by run id so one run's actions share a shard.
type Sink struct {
	client  *http.Client
	baseURL string
	prefix  string
}

// document is the flattened shape stored in the index.
type document struct {
	Timestamp  time.Time `json:"@timestamp"`
	RunID      string    `json:"run_id"`
	Type       string    `json:"type"`
	Op         string    `json:"op"`
	Bin        string    `json:"bin,omitempty"`
	Args       []string  `json:"args,omitempty"`
	Cwd        string    `json:"cwd"`
	PID        int       `json:"pid,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	Success    bool      `json:"success"`
}

func New(baseURL, prefix string) *Sink {
	c := &http.Client{Timeout: 5 * time.Second}
	return &Sink{client: c, baseURL: strings.TrimRight(baseURL, "/"), prefix: prefix}
}

// IndexFor returns the index an event of type t is written to.
func (s *Sink) IndexFor(t history.EventType) string {
	name := strings.ToLower(strings.ReplaceAll(string(t), "_", "-"))
	if name == "" {
		name = "unknown"
	}
	return s.prefix + "-" + name
}

func newDocument(e history.Event) document {
	r := e.Record
	return document{
		Timestamp:  e.OccurredAt.UTC(),
		RunID:      e.RunID,
		Type:       string(e.Type),
		Op:         r.Op,
		Bin:        r.Bin,
		Args:       r.Args,
		Cwd:        r.Cwd,
		PID:        r.PID,
		ExitCode:   r.ExitCode,
		DurationMS: r.DurationMS,
		Error:      r.Error,
		Success:    r.Error == "" && (r.ExitCode == nil || *r.ExitCode == 0),
	}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(newDocument(e))
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, url.PathEscape(s.IndexFor(e.Type)))
	if e.RunID != "" {
		u += "?routing=" + url.QueryEscape(e.RunID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("opensearch index %s: status %d: %s", s.IndexFor(e.Type), resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
