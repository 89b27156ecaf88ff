// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes melaconv tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/melaconv/internal/converter"
	"github.com/starford/melaconv/internal/ledger"
	"github.com/starford/melaconv/internal/mela"
	"github.com/starford/melaconv/internal/paprika"
)

const defaultRunLimit = 20

// RunLister is the part of the ledger the server reads.
type RunLister interface {
	ListRuns(limit int) ([]ledger.RunRow, error)
}

// Server wraps the MCP server with melaconv tools.
type Server struct {
	mcp  *server.MCPServer
	conv *converter.Converter
	runs RunLister
}

// New creates a new MCP server with all melaconv tools registered.
// runs may be nil when the ledger is disabled.
func New(conv *converter.Converter, runs RunLister) *Server {
	s := &Server{conv: conv, runs: runs}

	s.mcp = server.NewMCPServer(
		"melaconv",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("convert_archive",
		mcp.WithDescription("Convert a Mela export (.melarecipes) into a Paprika import archive (.paprikarecipes). "+
			"The conversion stops at the first bad recipe and leaves no output behind. "+
			"Read melaconv://archive-format for the field mapping."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path to the Mela export archive")),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the Paprika archive to create")),
		mcp.WithBoolean("overwrite", mcp.Description("Replace output if it already exists (default false)")),
	), s.convertArchive)

	s.mcp.AddTool(mcp.NewTool("inspect_archive",
		mcp.WithDescription("List the recipes of a Mela export (entry, ordinal, title, id) without converting it."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path to the Mela export archive")),
	), s.inspectArchive)

	s.mcp.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent conversion runs recorded in the ledger, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs (default 20)")),
	), s.listRuns)

	s.mcp.AddResource(
		mcp.NewResource(FormatResourceURI, "Archive Format",
			mcp.WithResourceDescription("Source and target archive layouts and the field mapping between them."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
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

type convertResult struct {
	Output string `json:"output"`
	Count  int    `json:"count"`
}

func (s *Server) convertArchive(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	output, err := req.RequireString("output")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	conv := s.conv
	if req.GetBool("overwrite", false) {
		opts := conv.OutputOptions()
		conv = conv.With(converter.WithOutputOptions(paprika.Options{Overwrite: true, Duplicates: opts.Duplicates}))
	}

	n, err := conv.Convert(ctx, source, output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conversion failed: %v", err)), nil
	}
	out, _ := json.Marshal(convertResult{Output: output, Count: n})
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) inspectArchive(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summaries, err := mela.Inspect(source)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(summaries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listRuns(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.runs == nil {
		return mcp.NewToolResultError("ledger is disabled"), nil
	}
	runs, err := s.runs.ListRuns(req.GetInt("limit", defaultRunLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(runs) == 0 {
		return mcp.NewToolResultText("no runs recorded"), nil
	}
	out, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatResourceURI,
			MIMEType: "text/markdown",
			Text:     ArchiveFormat,
		},
	}, nil
}
