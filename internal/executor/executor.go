package executor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Request describes one call to the API. Body is held as bytes so the
// request can be sent again after a credential refresh.
type Request struct {
	Method string
	// Path is resolved against the client base URL.
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header

	// Anonymous requests carry no credential and are never retried after a refresh.
	Anonymous bool

	retried bool
}

// Retried reports whether the request has already been resent after a refresh.
func (r *Request) Retried() bool {
	return r.retried
}

// BearerToken returns the token of the request's Authorization header.
func (r *Request) BearerToken() string {
	if r.Header == nil {
		return ""
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// Response represents an API response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Sender sends a request through the full client pipeline.
type Sender func(ctx context.Context, req *Request) (*Response, error)

// Interceptor is a stage consulted when a request fails. It either recovers
// by returning a response, or returns the error to pass on to the next stage.
type Interceptor interface {
	Intercept(ctx context.Context, req *Request, err error, send Sender) (*Response, error)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	ProxyURL   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client executes API requests and runs failures through its interceptors.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL

	mu           sync.RWMutex
	interceptors []Interceptor
}

// NewClient creates a new client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient(opts.ProxyURL, opts.Timeout)
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    base,
	}, nil
}

// Use appends an interceptor to the failure pipeline.
func (c *Client) Use(i Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, i)
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Do sends req. Successful responses are returned unchanged; failures are
// offered to each interceptor in turn until one recovers.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.send(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.mu.RLock()
	interceptors := append([]Interceptor(nil), c.interceptors...)
	c.mu.RUnlock()

	for _, i := range interceptors {
		resp, err = i.Intercept(ctx, req, err, c.Do)
		if err == nil {
			return resp, nil
		}
	}
	return nil, err
}

func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Debugf("Request error on %s %s: %v", req.Method, req.Path, err)
		return nil, &TransportError{URL: httpReq.URL.String(), Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{URL: httpReq.URL.String(), Err: fmt.Errorf("read response: %w", err)}
	}

	log.WithFields(log.Fields{
		"method":     req.Method,
		"path":       req.Path,
		"status":     httpResp.StatusCode,
		"latency":    time.Since(start),
		"request_id": httpReq.Header.Get("X-Request-ID"),
	}).Debug("API request completed")

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, &StatusError{
			StatusCode: httpResp.StatusCode,
			URL:        httpReq.URL.String(),
			Body:       body,
			Header:     httpResp.Header,
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Body:       body,
		Header:     httpResp.Header,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, req *Request) (*http.Request, error) {
	ref, err := url.Parse(strings.TrimPrefix(req.Path, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse request path: %w", err)
	}
	target := c.baseURL.ResolveReference(ref)
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}

	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}

	return httpReq, nil
}
