package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultHost is the loopback address servers bind to.
const DefaultHost = "127.0.0.1"

// DefaultAccept is sent when a Request leaves Accept empty.
const DefaultAccept = "text/html"

// Method is the HTTP verb of a Request.
type Method int

const (
	MethodGet Method = iota
	MethodPost
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	default:
		return "Method(" + strconv.Itoa(int(m)) + ")"
	}
}

// StatusPolicy decides what Do does with a non-200 response.
type StatusPolicy int

const (
	// StatusRequireOK turns a non-200 response into a *StatusError.
	StatusRequireOK StatusPolicy = iota
	// StatusNilOnError returns a nil response and nil error.
	StatusNilOnError
	// StatusIgnore returns the response as is.
	StatusIgnore
)

// Request describes one call. Path is relative to the server root; an
// absolute http(s) URL is used unchanged.
type Request struct {
	Method Method
	Path   string
	Query  url.Values
	// Form is sent as an application/x-www-form-urlencoded body.
	Form   url.Values
	Accept string
	Status StatusPolicy
}

// Response is a fully read response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       string
}

// StatusError reports a non-200 response under StatusRequireOK.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%q returned %d, not 200; body was: %q", e.URL, e.StatusCode, e.Body)
}

// Client talks to one server.
type Client struct {
	Host string
	Port int
	HTTP *http.Client
	Log  *slog.Logger
}

// New returns a client for the server listening on port on DefaultHost.
func New(port int) *Client {
	return &Client{Host: DefaultHost, Port: port}
}

// URL builds the absolute URL for path and query.
func (c *Client) URL(path string, query url.Values) (string, error) {
	if u, err := url.Parse(path); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return path, nil
	}
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	u := url.URL{
		Scheme: "http",
		Host:   host + ":" + strconv.Itoa(c.Port),
	}
	raw := u.String() + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		raw += "?" + query.Encode()
	}
	if _, err := url.Parse(raw); err != nil {
		return "", fmt.Errorf("build url for %q: %w", path, err)
	}
	return raw, nil
}

// Do sends req and reads the whole response body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.URL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method.String(), target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if req.Form != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	accept := req.Accept
	if accept == "" {
		accept = DefaultAccept
	}
	hreq.Header.Set("Accept", accept)

	hc := c.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := hc.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", hreq.Method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", target, err)
	}
	c.logger().Debug("http request", "method", hreq.Method, "url", target, "status", resp.StatusCode)

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: string(data)}
	if resp.StatusCode == http.StatusOK {
		return out, nil
	}
	switch req.Status {
	case StatusIgnore:
		return out, nil
	case StatusNilOnError:
		return nil, nil //nolint:nilnil // caller asked for nil on non-200
	default:
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode, Body: out.Body}
	}
}

// Get fetches path and returns the body with surrounding whitespace removed.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (string, error) {
	resp, err := c.Do(ctx, Request{Method: MethodGet, Path: path, Query: query})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Body), nil
}

// Post submits form to path.
func (c *Client) Post(ctx context.Context, path string, form url.Values) (*Response, error) {
	if form == nil {
		form = url.Values{}
	}
	return c.Do(ctx, Request{Method: MethodPost, Path: path, Form: form})
}

func (c *Client) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}
