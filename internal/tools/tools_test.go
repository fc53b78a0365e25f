package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"testgate/internal/execution"
	"testgate/internal/lookup"
	"testgate/internal/upstream"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSession satisfies server.ClientSession for handler tests.
type fakeSession struct {
	id          string
	notifs      chan mcp.JSONRPCNotification
	initialized bool
}

func (f *fakeSession) SessionID() string { return f.id }
func (f *fakeSession) NotificationChannel() chan<- mcp.JSONRPCNotification {
	return f.notifs
}
func (f *fakeSession) Initialize()       { f.initialized = true }
func (f *fakeSession) Initialized() bool { return f.initialized }

// staticProvider hands every connection the same upstream client.
type staticProvider struct {
	client *upstream.Client
	err    error
}

func (p *staticProvider) GetClient(connectionID string) (*upstream.Client, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

func sessionContext(t *testing.T) context.Context {
	t.Helper()
	s := server.NewMCPServer("test", "0.0.0")
	return s.WithContext(context.Background(), &fakeSession{
		id:     "conn-test",
		notifs: make(chan mcp.JSONRPCNotification, 1),
	})
}

func newDeps(t *testing.T, baseURL string) Deps {
	t.Helper()
	cache, err := lookup.New(16)
	require.NoError(t, err)
	return Deps{
		Clients: &staticProvider{client: upstream.NewClient(baseURL, upstream.Credentials{})},
		Tracker: execution.NewTracker(),
		Lookup:  cache,
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestHandlersFailWithoutSession(t *testing.T) {
	deps := newDeps(t, "http://upstream.test")

	result, err := deps.handleProjectList(context.Background(), callRequest("project_list", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError, "calls without a registered connection must fail")
}

func TestProjectListWarmsLookupCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"id":"11","name":"alpha"},{"id":"12","name":"beta"}]}`))
	}))
	defer srv.Close()

	deps := newDeps(t, srv.URL)
	result, err := deps.handleProjectList(sessionContext(t), callRequest("project_list", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	id, ok := deps.Lookup.Get("project", "alpha")
	assert.True(t, ok)
	assert.Equal(t, "11", id)
}

func TestResultListUnfilteredPassesPageThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("projectId"))
		w.Write([]byte(`{"content":[{"id":"1","suiteId":"T1","status":"PASSED"}],"pageNumber":0,"pageSize":1,"total":1}`))
	}))
	defer srv.Close()

	deps := newDeps(t, srv.URL)
	result, err := deps.handleResultList(sessionContext(t), callRequest("result_list", map[string]any{
		"project": "7",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var view struct {
		Items []json.RawMessage `json:"items"`
		Total *int64            `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &view))
	assert.Len(t, view.Items, 1)
	require.NotNil(t, view.Total)
	assert.Equal(t, int64(1), *view.Total)
}

func TestResultListSuiteFilterReconciles(t *testing.T) {
	// Three upstream pages of size 2; suite T3 items sit on pages 0 and 2.
	pages := []string{
		`{"content":[{"id":"1","suiteId":"T3","status":"PASSED"},{"id":"2","suiteId":"T1","status":"FAILED"}],"pageNumber":0,"pageSize":2,"total":5}`,
		`{"content":[{"id":"3","suiteId":"T1","status":"PASSED"},{"id":"4","suiteId":"T1","status":"PASSED"}],"pageNumber":1,"pageSize":2,"total":5}`,
		`{"content":[{"id":"5","suiteId":"T3","status":"FAILED"}],"pageNumber":2,"pageSize":2,"total":5}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		var idx int
		fmt.Sscanf(page, "%d", &idx)
		require.Less(t, idx, len(pages), "walk must stop at the last page")
		w.Write([]byte(pages[idx]))
	}))
	defer srv.Close()

	deps := newDeps(t, srv.URL)
	result, err := deps.handleResultList(sessionContext(t), callRequest("result_list", map[string]any{
		"project": "7",
		"suite":   "T3",
		"size":    2,
		"all":     true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, textOf(t, result))

	var view struct {
		Items     []json.RawMessage     `json:"items"`
		Matched   int                   `json:"matched"`
		Counts    upstream.ResultCounts `json:"counts"`
		Truncated bool                  `json:"truncated"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &view))
	assert.Equal(t, 2, view.Matched)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, upstream.ResultCounts{Items: 2, Passed: 1, Failed: 1}, view.Counts)
	assert.False(t, view.Truncated)
}

func TestExecutionLifecycle(t *testing.T) {
	var statusCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/suites/S1/executions", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Execution-Id", "exec-9")
		w.Header().Add("Set-Cookie", "EXECUTION=e9; Path=/")
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /api/suites/S1/executions/latest/status", func(w http.ResponseWriter, r *http.Request) {
		statusCookie = r.Header.Get("Cookie")
		if r.Header.Get("X-Execution-Id") != "exec-9" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"state":"RUNNING"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	deps := newDeps(t, srv.URL)
	ctx := sessionContext(t)

	start, err := deps.handleExecutionStart(ctx, callRequest("execution_start", map[string]any{"suite": "S1"}))
	require.NoError(t, err)
	require.False(t, start.IsError, textOf(t, start))

	status, err := deps.handleExecutionStatus(ctx, callRequest("execution_status", map[string]any{"suite": "S1"}))
	require.NoError(t, err)
	require.False(t, status.IsError, textOf(t, status))
	assert.Contains(t, textOf(t, status), "RUNNING")
	assert.Contains(t, statusCookie, "EXECUTION=e9", "captured cookie fragments must be replayed")
}

func TestExecutionStatusWithoutStartFailsFast(t *testing.T) {
	deps := newDeps(t, "http://upstream.test")

	result, err := deps.handleExecutionStatus(sessionContext(t), callRequest("execution_status", map[string]any{"suite": "S1"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "no active execution session for suite S1")
	assert.Contains(t, textOf(t, result), "start one first")
}

func TestFailedStartClearsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"platform exploded"}`))
	}))
	defer srv.Close()

	deps := newDeps(t, srv.URL)
	ctx := sessionContext(t)

	start, err := deps.handleExecutionStart(ctx, callRequest("execution_start", map[string]any{"suite": "S1"}))
	require.NoError(t, err)
	assert.True(t, start.IsError)

	// A failed start must not leave a half-open session behind.
	_, trackErr := deps.Tracker.HeadersFor("S1")
	assert.Error(t, trackErr)
}

func TestLookupClear(t *testing.T) {
	deps := newDeps(t, "http://upstream.test")
	deps.Lookup.Put("project", "alpha", "1")

	result, err := deps.handleLookupClear(context.Background(), callRequest("lookup_clear", nil))
	require.NoError(t, err)
	require.False(t, result.IsError)

	if _, ok := deps.Lookup.Get("project", "alpha"); ok {
		t.Error("Expected cache cleared")
	}
}

func TestResolveProjectByName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"42","name":"gamma"}]`))
	}))
	defer srv.Close()

	deps := newDeps(t, srv.URL)
	client := upstream.NewClient(srv.URL, upstream.Credentials{})

	id, err := deps.resolveProject(context.Background(), client, "gamma")
	require.NoError(t, err)
	assert.Equal(t, "42", id)

	// Second resolve must hit the cache, not the upstream.
	srv.Close()
	id, err = deps.resolveProject(context.Background(), client, "gamma")
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestResolveProjectNumericPassThrough(t *testing.T) {
	deps := newDeps(t, "http://upstream.test")
	id, err := deps.resolveProject(context.Background(), nil, "1234")
	require.NoError(t, err)
	assert.Equal(t, "1234", id)
}

func TestAllToolsRegistered(t *testing.T) {
	deps := newDeps(t, "http://upstream.test")
	all := All(deps)

	names := make(map[string]bool, len(all))
	for _, tool := range all {
		names[tool.Tool.Name] = true
	}
	for _, want := range []string{
		"project_list", "suite_list", "result_list",
		"execution_start", "execution_status", "execution_results", "lookup_clear",
	} {
		assert.True(t, names[want], "missing tool %s", want)
	}
}
