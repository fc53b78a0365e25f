// Package tools defines the MCP tool surface of testgate. Handlers are thin:
// they resolve the calling connection's upstream client, delegate to the
// upstream and execution layers, and render the outcome as text content.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"testgate/internal/execution"
	"testgate/internal/lookup"
	"testgate/internal/upstream"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tidwall/gjson"
)

// ClientProvider resolves a connection ID to the upstream client it owns.
// The gateway's connection registry implements it.
type ClientProvider interface {
	GetClient(connectionID string) (*upstream.Client, error)
}

// Deps are the collaborators the tool handlers need.
type Deps struct {
	Clients ClientProvider
	Tracker *execution.Tracker
	Lookup  *lookup.Cache
}

// defaultPageSize is the page size used for list calls when the caller does
// not specify one.
const defaultPageSize = 50

// All returns the complete tool set, bound to one transport's connection
// registry.
func All(deps Deps) []server.ServerTool {
	return []server.ServerTool{
		{Tool: projectListTool(), Handler: deps.handleProjectList},
		{Tool: suiteListTool(), Handler: deps.handleSuiteList},
		{Tool: resultListTool(), Handler: deps.handleResultList},
		{Tool: executionStartTool(), Handler: deps.handleExecutionStart},
		{Tool: executionStatusTool(), Handler: deps.handleExecutionStatus},
		{Tool: executionResultsTool(), Handler: deps.handleExecutionResults},
		{Tool: lookupClearTool(), Handler: deps.handleLookupClear},
	}
}

// client resolves the upstream client for the calling connection. Calls
// without a registered connection fail immediately instead of creating state.
func (d Deps) client(ctx context.Context) (*upstream.Client, error) {
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return nil, errors.New("no client session associated with this call")
	}
	return d.Clients.GetClient(session.SessionID())
}

func projectListTool() mcp.Tool {
	return mcp.NewTool("project_list",
		mcp.WithDescription("List all projects on the platform."),
	)
}

func (d Deps) handleProjectList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := d.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := client.ListProjects(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Opportunistically warm the name-to-id cache.
	for _, item := range page.Items {
		name := gjson.GetBytes(item, "name").String()
		id := gjson.GetBytes(item, "id").String()
		if name != "" && id != "" {
			d.Lookup.Put("project", name, id)
		}
	}

	return renderPage(page)
}

func suiteListTool() mcp.Tool {
	return mcp.NewTool("suite_list",
		mcp.WithDescription("List test suites of a project."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
		mcp.WithNumber("page", mcp.Description("Upstream page number (default 0)")),
		mcp.WithNumber("size", mcp.Description("Upstream page size (default 50)")),
	)
}

func (d Deps) handleSuiteList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := d.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectID, err := d.resolveProject(ctx, client, project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	page, err := client.ListSuites(ctx, projectID, request.GetInt("page", 0), request.GetInt("size", defaultPageSize))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return renderPage(page)
}

func resultListTool() mcp.Tool {
	return mcp.NewTool("result_list",
		mcp.WithDescription("List automation results of a project. With a suite filter the gateway walks "+
			"upstream pages to collect that suite's results (the platform paginates results by run, not by "+
			"suite) and windows them by offset/limit; counts are recomputed over the returned slice."),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name or id")),
		mcp.WithString("suite", mcp.Description("Suite id to filter by")),
		mcp.WithNumber("page", mcp.Description("Upstream page number, unfiltered listing only (default 0)")),
		mcp.WithNumber("size", mcp.Description("Upstream page size, unfiltered listing only (default 50)")),
		mcp.WithNumber("offset", mcp.Description("Window offset over the matched set, suite filter only (default 0)")),
		mcp.WithNumber("limit", mcp.Description("Window size over the matched set, suite filter only (default 50)")),
		mcp.WithBoolean("all", mcp.Description("Return the full matched set, ignoring offset/limit")),
	)
}

func (d Deps) handleResultList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := d.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	project, err := request.RequireString("project")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectID, err := d.resolveProject(ctx, client, project)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suiteID := request.GetString("suite", "")
	if suiteID == "" {
		// No cross-page filter needed: the upstream's own paging applies.
		page, err := client.ListResults(ctx, projectID, request.GetInt("page", 0), request.GetInt("size", defaultPageSize))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return renderPage(page)
	}

	window := upstream.PageWindow{
		Offset:  request.GetInt("offset", 0),
		Limit:   request.GetInt("limit", defaultPageSize),
		Unpaged: request.GetBool("all", false),
	}
	walkSize := request.GetInt("size", defaultPageSize)

	fetch := func(ctx context.Context, pageNumber int) (upstream.Page, error) {
		return client.ListResults(ctx, projectID, pageNumber, walkSize)
	}
	result, err := upstream.Reconcile(ctx, fetch, upstream.MatchField("suiteId", suiteID), walkSize, window)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return renderReconciled(result)
}

func executionStartTool() mcp.Tool {
	return mcp.NewTool("execution_start",
		mcp.WithDescription("Start an execution of a test suite. Any prior execution session for the suite "+
			"is discarded, regardless of which connection started it."),
		mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id")),
	)
}

func (d Deps) handleExecutionStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	client, err := d.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suiteID, err := request.RequireString("suite")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	d.Tracker.Start(suiteID)
	headers, err := client.StartExecution(ctx, suiteID)
	if err != nil {
		d.Tracker.Clear(suiteID)
		return mcp.NewToolResultError(err.Error()), nil
	}
	d.Tracker.Capture(suiteID, headers)

	return mcp.NewToolResultText(fmt.Sprintf("Execution started for suite %s. Use execution_status and execution_results to follow it.", suiteID)), nil
}

func executionStatusTool() mcp.Tool {
	return mcp.NewTool("execution_status",
		mcp.WithDescription("Read the status of the suite's current execution. Requires an execution session started with execution_start."),
		mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id")),
	)
}

func (d Deps) handleExecutionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return d.executionRead(ctx, request, (*upstream.Client).ExecutionStatus)
}

func executionResultsTool() mcp.Tool {
	return mcp.NewTool("execution_results",
		mcp.WithDescription("Read the results of the suite's current execution. Requires an execution session started with execution_start."),
		mcp.WithString("suite", mcp.Required(), mcp.Description("Suite id")),
	)
}

func (d Deps) handleExecutionResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return d.executionRead(ctx, request, (*upstream.Client).ExecutionResults)
}

func (d Deps) executionRead(ctx context.Context, request mcp.CallToolRequest,
	call func(*upstream.Client, context.Context, string, http.Header) ([]byte, error)) (*mcp.CallToolResult, error) {

	client, err := d.client(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suiteID, err := request.RequireString("suite")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	headers, err := d.Tracker.HeadersFor(suiteID)
	if err != nil {
		// Fail fast with the actionable message instead of returning empty data.
		return mcp.NewToolResultError(err.Error()), nil
	}

	body, err := call(client, ctx, suiteID, headers)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func lookupClearTool() mcp.Tool {
	return mcp.NewTool("lookup_clear",
		mcp.WithDescription("Clear the process-wide name-to-id lookup cache."),
	)
}

func (d Deps) handleLookupClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d.Lookup.Clear()
	return mcp.NewToolResultText("Lookup cache cleared."), nil
}

// resolveProject turns a project name or id into an id, consulting the
// lookup cache before falling back to a project list call.
func (d Deps) resolveProject(ctx context.Context, client *upstream.Client, nameOrID string) (string, error) {
	if isIdentifier(nameOrID) {
		return nameOrID, nil
	}
	if id, ok := d.Lookup.Get("project", nameOrID); ok {
		return id, nil
	}

	page, err := client.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, item := range page.Items {
		name := gjson.GetBytes(item, "name").String()
		id := gjson.GetBytes(item, "id").String()
		if name != "" && id != "" {
			d.Lookup.Put("project", name, id)
		}
		if name == nameOrID {
			return id, nil
		}
	}
	return "", fmt.Errorf("project %q not found", nameOrID)
}

// isIdentifier reports whether the value looks like an upstream id rather
// than a display name.
func isIdentifier(v string) bool {
	if v == "" {
		return false
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// pageView is the canonical rendering of a normalized page.
type pageView struct {
	Items      []json.RawMessage `json:"items"`
	PageNumber int               `json:"pageNumber"`
	PageSize   int               `json:"pageSize"`
	Total      *int64            `json:"total,omitempty"`
	HasMore    bool              `json:"hasMore"`
}

func renderPage(page upstream.Page) (*mcp.CallToolResult, error) {
	view := pageView{
		Items:      page.Items,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		HasMore:    page.HasMore,
	}
	if page.TotalKnown {
		view.Total = &page.Total
	}
	return renderJSON(view)
}

// reconciledView renders a reconciled window, with counts recomputed over
// the returned slice and an explicit truncation flag.
type reconciledView struct {
	Items     []json.RawMessage     `json:"items"`
	Matched   int                   `json:"matched"`
	Counts    upstream.ResultCounts `json:"counts"`
	Truncated bool                  `json:"truncated"`
}

func renderReconciled(result upstream.ReconciledResult) (*mcp.CallToolResult, error) {
	return renderJSON(reconciledView{
		Items:     result.Items,
		Matched:   result.Matched,
		Counts:    result.Counts,
		Truncated: result.Truncated,
	})
}

func renderJSON(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("rendering result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
