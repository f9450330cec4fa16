// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes AstroSvitla chart tools for LLM integration via stdio
// transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rusel95/AstroSvitla-sub001/internal/apperr"
	"github.com/rusel95/AstroSvitla-sub001/internal/astro"
	"github.com/rusel95/AstroSvitla-sub001/internal/chartservice"
)

// Server wraps the MCP server with AstroSvitla tools.
type Server struct {
	mcp *server.MCPServer
	svc *chartservice.Service
}

// New creates a new MCP server with all chart tools registered.
func New(svc *chartservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"AstroSvitla",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("generate_chart",
		mcp.WithDescription("Generate a natal chart for the given birth data. "+
			"Served from the local cache when the same birth data was charted before; "+
			"otherwise fetched from the astrology provider, which costs two requests "+
			"against the shared quota. Read the astro://chart-schema resource or call "+
			"get_chart_schema to understand the returned document."),
		mcp.WithNumber("year", mcp.Required(), mcp.Description("Birth year, e.g. 1990")),
		mcp.WithNumber("month", mcp.Required(), mcp.Description("Birth month 1-12")),
		mcp.WithNumber("day", mcp.Required(), mcp.Description("Birth day 1-31")),
		mcp.WithNumber("hour", mcp.Required(), mcp.Description("Birth hour 0-23 local time")),
		mcp.WithNumber("minute", mcp.Required(), mcp.Description("Birth minute 0-59")),
		mcp.WithNumber("latitude", mcp.Required(), mcp.Description("Birth latitude in decimal degrees, -90..90")),
		mcp.WithNumber("longitude", mcp.Required(), mcp.Description("Birth longitude in decimal degrees, -180..180")),
		mcp.WithNumber("timezone_offset", mcp.Required(), mcp.Description("UTC offset of the birth place in hours, e.g. 2 or -5.5")),
		mcp.WithString("house_system", mcp.Description("Optional house system (placidus, koch, equal_house, topocentric, poryphry, whole_sign); placidus when omitted")),
		mcp.WithBoolean("force_refresh", mcp.Description("Bypass the cache and refetch from the provider")),
	), s.generateChart)

	s.mcp.AddTool(mcp.NewTool("get_chart",
		mcp.WithDescription("Read a cached natal chart by its fingerprint without touching the provider."),
		mcp.WithString("fingerprint", mcp.Required(), mcp.Description("Chart fingerprint as returned by generate_chart or list_charts")),
	), s.getChart)

	s.mcp.AddTool(mcp.NewTool("list_charts",
		mcp.WithDescription("List all cached charts with their fingerprints, birth data and staleness."),
	), s.listCharts)

	s.mcp.AddTool(mcp.NewTool("delete_chart",
		mcp.WithDescription("Delete a cached chart and its wheel image."),
		mcp.WithString("fingerprint", mcp.Required(), mcp.Description("Fingerprint of the chart to delete")),
	), s.deleteChart)

	s.mcp.AddTool(mcp.NewTool("monthly_usage",
		mcp.WithDescription("Report provider requests made this calendar month, estimated charts, "+
			"credits consumed against the monthly budget, and how many requests still fit in the "+
			"current rate window."),
	), s.monthlyUsage)

	s.mcp.AddTool(mcp.NewTool("get_chart_schema",
		mcp.WithDescription("Returns the schema of the chart documents produced by the chart tools. "+
			"Call this before interpreting charts to understand the fields."),
	), s.getChartSchema)

	// Resource: chart document schema.
	s.mcp.AddResource(
		mcp.NewResource("astro://chart-schema", "Chart Document Schema",
			mcp.WithResourceDescription("Structure and semantics of the natal chart JSON documents."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readChartSchemaResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) generateChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var q astro.BirthQuery
	var err error
	if q.Year, err = req.RequireInt("year"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Month, err = req.RequireInt("month"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Day, err = req.RequireInt("day"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Hour, err = req.RequireInt("hour"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Minute, err = req.RequireInt("minute"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Latitude, err = req.RequireFloat("latitude"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.Longitude, err = req.RequireFloat("longitude"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if q.TimezoneOffset, err = req.RequireFloat("timezone_offset"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	q.HouseSystem = astro.HouseSystem(req.GetString("house_system", string(astro.Placidus)))
	forceRefresh := req.GetBool("force_refresh", false)

	chart, err := s.svc.Generate(ctx, q, forceRefresh)
	if err != nil {
		var rl *apperr.RateLimitedError
		if errors.As(err, &rl) {
			return mcp.NewToolResultError(fmt.Sprintf("rate limited: retry in %s", rl.RetryAfter.Round(time.Second))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(chart, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fingerprint, err := req.RequireString("fingerprint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	chart, err := s.svc.Cached(ctx, fingerprint)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", fingerprint)), nil
	}
	out, _ := json.MarshalIndent(chart, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCharts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	charts, err := s.svc.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(charts) == 0 {
		return mcp.NewToolResultText("no cached charts"), nil
	}
	out, _ := json.MarshalIndent(charts, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) deleteChart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fingerprint, err := req.RequireString("fingerprint")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, fingerprint); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %s", fingerprint)), nil
}

func (s *Server) monthlyUsage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.svc.Usage(ctx), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getChartSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ChartSchemaContract), nil
}

func (s *Server) readChartSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "astro://chart-schema",
			MIMEType: "text/markdown",
			Text:     ChartSchemaContract,
		},
	}, nil
}
