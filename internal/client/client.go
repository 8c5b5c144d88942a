// Package client is a typed client for the warden HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/warden/internal/api"
	"github.com/mattjoyce/warden/internal/events"
	"github.com/mattjoyce/warden/internal/track"
)

// Error is a non-2xx API response.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("warden api: %d %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New returns a client for baseURL. A zero timeout means none, which the
// event stream and flush need.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Health(ctx context.Context) (*api.HealthzResponse, error) {
	var out api.HealthzResponse
	return &out, c.do(ctx, http.MethodGet, "/healthz", nil, &out)
}

// Register starts tracking a script and returns its owner id.
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (string, error) {
	var out api.RegisterResponse
	if err := c.do(ctx, http.MethodPost, "/scripts", req, &out); err != nil {
		return "", err
	}
	return out.Owner, nil
}

func (c *Client) UpdatePID(ctx context.Context, owner string, pid int) error {
	return c.do(ctx, http.MethodPut, "/scripts/"+owner+"/pid", api.UpdatePIDRequest{PID: pid}, nil)
}

// Exit reports a script's wait status.
func (c *Client) Exit(ctx context.Context, owner string, req api.ExitRequest) (*api.ExitResponse, error) {
	var out api.ExitResponse
	return &out, c.do(ctx, http.MethodPost, "/scripts/"+owner+"/exit", req, &out)
}

func (c *Client) Deregister(ctx context.Context, owner string) error {
	return c.do(ctx, http.MethodDelete, "/scripts/"+owner, nil, nil)
}

func (c *Client) Scripts(ctx context.Context) ([]track.Record, error) {
	var out api.ScriptsResponse
	if err := c.do(ctx, http.MethodGet, "/scripts", nil, &out); err != nil {
		return nil, err
	}
	return out.Scripts, nil
}

func (c *Client) Script(ctx context.Context, owner string) (*track.Record, error) {
	var out track.Record
	return &out, c.do(ctx, http.MethodGet, "/scripts/"+owner, nil, &out)
}

func (c *Client) KillJob(ctx context.Context, job uint32) (int, error) {
	var out api.KillJobResponse
	if err := c.do(ctx, http.MethodPost, "/jobs/"+strconv.FormatUint(uint64(job), 10)+"/kill", nil, &out); err != nil {
		return 0, err
	}
	return out.Signaled, nil
}

// Flush blocks until the daemon's flush completes.
func (c *Client) Flush(ctx context.Context) (*api.FlushResponse, error) {
	var out api.FlushResponse
	return &out, c.do(ctx, http.MethodPost, "/flush", nil, &out)
}

func (c *Client) Stats(ctx context.Context) (*track.Stats, error) {
	var out track.Stats
	return &out, c.do(ctx, http.MethodGet, "/stats", nil, &out)
}

func (c *Client) Runs(ctx context.Context, limit int) (*api.RunsResponse, error) {
	var out api.RunsResponse
	return &out, c.do(ctx, http.MethodGet, "/runs?limit="+strconv.Itoa(limit), nil, &out)
}

func (c *Client) Anomalies(ctx context.Context, limit int) (*api.AnomaliesResponse, error) {
	var out api.AnomaliesResponse
	return &out, c.do(ctx, http.MethodGet, "/anomalies?limit="+strconv.Itoa(limit), nil, &out)
}

// Events streams server-sent events to ch until ctx is done or the
// connection drops. lastID resumes after an earlier stream.
func (c *Client) Events(ctx context.Context, lastID int64, ch chan<- events.Event) error {
	return c.EventsOf(ctx, lastID, nil, ch)
}

// EventsOf is Events restricted to types. A type ending in "." matches every
// event with that prefix.
func (c *Client) EventsOf(ctx context.Context, lastID int64, types []string, ch chan<- events.Event) error {
	path := "/events"
	if len(types) > 0 {
		q := url.Values{}
		for _, t := range types {
			q.Add("type", t)
		}
		path += "?" + q.Encode()
	}

	req, err := c.request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("connect event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readError(resp)
	}

	return readSSE(ctx, resp.Body, ch)
}

func readSSE(ctx context.Context, r io.Reader, ch chan<- events.Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var cur events.Event
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(cur.Data) == 0 {
				continue
			}
			cur.At = time.Now()
			select {
			case ch <- cur:
			case <-ctx.Done():
				return ctx.Err()
			}
			cur = events.Event{}
		case strings.HasPrefix(line, ":"):
			// keep-alive comment
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			cur.Data = json.RawMessage(line[6:])
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read event stream: %w", err)
	}
	return ctx.Err()
}

func (c *Client) request(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.request(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return readError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func readError(resp *http.Response) error {
	var e api.ErrorResponse
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if json.Unmarshal(body, &e) != nil || e.Error == "" {
		e.Error = strings.TrimSpace(string(body))
	}
	return &Error{Status: resp.StatusCode, Message: e.Error}
}
