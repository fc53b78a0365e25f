package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"testgate/pkg/logging"

	"github.com/google/uuid"
)

// RequestStage is one step of the outbound request pipeline. Stages run in a
// fixed order on every request and must be idempotent.
type RequestStage func(*http.Request)

// Client issues all upstream calls for one gateway connection. It owns the
// connection's resolved credentials and its affinity state; both die with it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	creds    CredentialContext
	affinity *AffinityStore
	stages   []RequestStage
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTimeout sets the per-call timeout. Zero keeps the default of 30s.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a Client for one connection. The credential header is
// resolved once here and stays immutable for the Client's lifetime.
func NewClient(baseURL string, creds Credentials, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		timeout:    30 * time.Second,
		creds:      ResolveCredentials(creds),
		affinity:   NewAffinityStore(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// The pipeline order is part of the contract: credentials before
	// affinity, correlation last so it covers every request unconditionally.
	c.stages = []RequestStage{
		func(req *http.Request) { c.creds.Apply(req.Header) },
		func(req *http.Request) { c.affinity.ApplyTo(req.Header) },
		attachCorrelationID,
		logRequest,
	}
	return c
}

// Credentials returns the resolved credential context (scheme and
// fingerprint only).
func (c *Client) Credentials() CredentialContext {
	return c.creds
}

// Affinity exposes the client's affinity store.
func (c *Client) Affinity() *AffinityStore {
	return c.affinity
}

// attachCorrelationID sets the process-wide request-tracking header used for
// audit correlation.
func attachCorrelationID(req *http.Request) {
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", uuid.NewString())
	}
}

func logRequest(req *http.Request) {
	logging.Debug("Upstream", "%s %s (request %s)", req.Method, req.URL.Path, req.Header.Get("X-Request-Id"))
}

// Response is the raw outcome of an upstream call: status, headers and body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do issues one upstream call. The extra headers, when non-nil, are applied
// before the pipeline runs, so pipeline stages may append to them (the
// affinity stage appends to an explicit Cookie header rather than replacing
// it). Non-2xx responses come back as a classified *Error.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}, extra http.Header) (*Response, error) {
	return c.doNamed(ctx, method, method+" "+path, "", path, query, body, extra)
}

func (c *Client) doNamed(ctx context.Context, method, operation, resource, path string, query url.Values, body interface{}, extra http.Header) (*Response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body for %s: %w", operation, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for name, values := range extra {
		for _, v := range values {
			req.Header.Add(name, v)
		}
	}

	for _, stage := range c.stages {
		stage(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response for %s: %w", operation, err)
	}

	c.affinity.OnResponse(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newUpstreamError(operation, resource, resp.StatusCode, respBody)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// ListProjects fetches the project reference list. The endpoint may answer in
// any of the three list shapes.
func (c *Client) ListProjects(ctx context.Context) (Page, error) {
	resp, err := c.doNamed(ctx, http.MethodGet, "project list", "", "/api/projects", nil, nil, nil)
	if err != nil {
		return Page{}, err
	}
	return Normalize(resp.Body)
}

// ListSuites fetches one page of a project's test suites.
func (c *Client) ListSuites(ctx context.Context, projectID string, pageNumber, pageSize int) (Page, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(pageNumber))
	if pageSize > 0 {
		query.Set("size", strconv.Itoa(pageSize))
	}
	path := "/api/projects/" + url.PathEscape(projectID) + "/suites"
	resp, err := c.doNamed(ctx, http.MethodGet, "suite list", "project "+projectID, path, query, nil, nil)
	if err != nil {
		return Page{}, err
	}
	return Normalize(resp.Body)
}

// ListResults fetches one page of a project's automation results. The
// upstream paginates these by run, not by suite; filtering by suite is the
// reconciler's job.
func (c *Client) ListResults(ctx context.Context, projectID string, pageNumber, pageSize int) (Page, error) {
	query := url.Values{}
	query.Set("projectId", projectID)
	query.Set("page", strconv.Itoa(pageNumber))
	if pageSize > 0 {
		query.Set("size", strconv.Itoa(pageSize))
	}
	resp, err := c.doNamed(ctx, http.MethodGet, "result list", "project "+projectID, "/api/results", query, nil, nil)
	if err != nil {
		return Page{}, err
	}
	return Normalize(resp.Body)
}

// StartExecution starts a suite execution and returns the full response
// headers. The caller records them with the execution tracker; later status
// and result calls must replay them to address the same upstream execution
// context.
func (c *Client) StartExecution(ctx context.Context, suiteID string) (http.Header, error) {
	path := "/api/suites/" + url.PathEscape(suiteID) + "/executions"
	resp, err := c.doNamed(ctx, http.MethodPost, "execution start", "suite "+suiteID, path, nil, struct{}{}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Header, nil
}

// ExecutionStatus reads the status of the suite's current execution using the
// headers captured at start time.
func (c *Client) ExecutionStatus(ctx context.Context, suiteID string, sessionHeaders http.Header) ([]byte, error) {
	path := "/api/suites/" + url.PathEscape(suiteID) + "/executions/latest/status"
	resp, err := c.doNamed(ctx, http.MethodGet, "execution status", "suite "+suiteID, path, nil, nil, sessionHeaders)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ExecutionResults reads the results of the suite's current execution using
// the headers captured at start time.
func (c *Client) ExecutionResults(ctx context.Context, suiteID string, sessionHeaders http.Header) ([]byte, error) {
	path := "/api/suites/" + url.PathEscape(suiteID) + "/executions/latest/results"
	resp, err := c.doNamed(ctx, http.MethodGet, "execution results", "suite "+suiteID, path, nil, nil, sessionHeaders)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
