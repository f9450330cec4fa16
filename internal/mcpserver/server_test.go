package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rusel95/AstroSvitla-sub001/internal/chartservice"
	"github.com/rusel95/AstroSvitla-sub001/internal/ratelimit"
	"github.com/rusel95/AstroSvitla-sub001/internal/testutil"
)

func testServer(t *testing.T) (*Server, *testutil.StubProvider) {
	t.Helper()

	db := testutil.TestChartDB(t)
	_, assets := testutil.TestAssetDir(t)
	prov := &testutil.StubProvider{}

	limiter, err := ratelimit.New(db, ratelimit.Config{Limit: 100})
	if err != nil {
		t.Fatal(err)
	}

	svc := chartservice.New(chartservice.Config{
		Charts:   db,
		Assets:   assets,
		Provider: prov,
		Limiter:  limiter,
	}, slog.New(slog.NewJSONHandler(io.Discard, nil)))

	return New(svc), prov
}

func sampleArgs(minute int) map[string]interface{} {
	q := testutil.SampleQuery(minute)
	return map[string]interface{}{
		"year":            float64(q.Year),
		"month":           float64(q.Month),
		"day":             float64(q.Day),
		"hour":            float64(q.Hour),
		"minute":          float64(q.Minute),
		"latitude":        q.Latitude,
		"longitude":       q.Longitude,
		"timezone_offset": q.TimezoneOffset,
	}
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we call
	// the handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "generate_chart":
		result, err = srv.generateChart(ctx, req)
	case "get_chart":
		result, err = srv.getChart(ctx, req)
	case "list_charts":
		result, err = srv.listCharts(ctx, req)
	case "delete_chart":
		result, err = srv.deleteChart(ctx, req)
	case "monthly_usage":
		result, err = srv.monthlyUsage(ctx, req)
	case "get_chart_schema":
		result, err = srv.getChartSchema(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestGenerateAndGetChart(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "generate_chart", sampleArgs(0))
	if r.IsError {
		t.Fatalf("generate error: %s", resultText(r))
	}
	var chart struct {
		Fingerprint string `json:"fingerprint"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &chart); err != nil {
		t.Fatalf("generate result not JSON: %v", err)
	}
	if chart.Fingerprint == "" {
		t.Fatal("fingerprint is empty")
	}

	r = callTool(t, srv, "get_chart", map[string]interface{}{"fingerprint": chart.Fingerprint})
	if r.IsError {
		t.Fatalf("get error: %s", resultText(r))
	}
	if !strings.Contains(resultText(r), chart.Fingerprint) {
		t.Errorf("get result missing fingerprint")
	}
}

func TestGenerateServedFromCache(t *testing.T) {
	srv, prov := testServer(t)

	_ = callTool(t, srv, "generate_chart", sampleArgs(0))
	_ = callTool(t, srv, "generate_chart", sampleArgs(0))
	if data, _ := prov.Calls(); data != 1 {
		t.Errorf("provider data calls = %d, want 1", data)
	}
}

func TestGenerateMissingArgument(t *testing.T) {
	srv, _ := testServer(t)

	args := sampleArgs(0)
	delete(args, "latitude")
	r := callTool(t, srv, "generate_chart", args)
	if !r.IsError {
		t.Error("expected error for missing latitude")
	}
}

func TestGenerateInvalidBirthData(t *testing.T) {
	srv, prov := testServer(t)

	args := sampleArgs(0)
	args["month"] = float64(13)
	r := callTool(t, srv, "generate_chart", args)
	if !r.IsError {
		t.Error("expected error for month 13")
	}
	if data, _ := prov.Calls(); data != 0 {
		t.Errorf("provider called %d times for invalid query", data)
	}
}

func TestGetChartMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_chart", map[string]interface{}{"fingerprint": "feedfacefeedface"})
	if !r.IsError {
		t.Error("expected error for missing chart")
	}
}

func TestListCharts(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "list_charts", map[string]interface{}{})
	if resultText(r) != "no cached charts" {
		t.Errorf("empty list = %q", resultText(r))
	}

	gen := callTool(t, srv, "generate_chart", sampleArgs(0))
	var chart struct {
		Fingerprint string `json:"fingerprint"`
	}
	_ = json.Unmarshal([]byte(resultText(gen)), &chart)

	r = callTool(t, srv, "list_charts", map[string]interface{}{})
	if !strings.Contains(resultText(r), chart.Fingerprint) {
		t.Errorf("list missing fingerprint: %s", resultText(r))
	}
}

func TestDeleteChart(t *testing.T) {
	srv, _ := testServer(t)

	gen := callTool(t, srv, "generate_chart", sampleArgs(0))
	var chart struct {
		Fingerprint string `json:"fingerprint"`
	}
	_ = json.Unmarshal([]byte(resultText(gen)), &chart)

	r := callTool(t, srv, "delete_chart", map[string]interface{}{"fingerprint": chart.Fingerprint})
	if r.IsError {
		t.Fatalf("delete error: %s", resultText(r))
	}

	r = callTool(t, srv, "get_chart", map[string]interface{}{"fingerprint": chart.Fingerprint})
	if !r.IsError {
		t.Error("expected error after delete")
	}
}

func TestMonthlyUsage(t *testing.T) {
	srv, _ := testServer(t)

	_ = callTool(t, srv, "generate_chart", sampleArgs(0))

	r := callTool(t, srv, "monthly_usage", map[string]interface{}{})
	var usage struct {
		RequestCount    int `json:"request_count"`
		EstimatedCharts int `json:"estimated_charts"`
		CreditLimit     int `json:"credit_limit"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &usage); err != nil {
		t.Fatalf("usage result not JSON: %v", err)
	}
	if usage.RequestCount != 2 || usage.EstimatedCharts != 1 {
		t.Errorf("usage = %+v, want 2 requests / 1 chart", usage)
	}
	if usage.CreditLimit != 5000 {
		t.Errorf("credit limit = %d, want 5000", usage.CreditLimit)
	}
}

func TestGetChartSchema(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_chart_schema", map[string]interface{}{})
	if !strings.Contains(resultText(r), "fingerprint") {
		t.Error("schema missing fingerprint field")
	}
}
