// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Raido session and journal tools for LLM integration via
// stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/engine"
	"github.com/starford/raido/internal/journal"
	"github.com/starford/raido/internal/sidecar"
	"github.com/starford/raido/internal/storage"
)

// Server wraps the MCP server with Raido tools.
type Server struct {
	mcp     *server.MCPServer
	session *engine.Session
	store   storage.Provider
	jrnl    journal.Journal
}

// New creates a new MCP server with all Raido tools registered. jrnl may
// be nil; the journal-backed tools then report that no journal is open.
func New(session *engine.Session, store storage.Provider, jrnl journal.Journal) *Server {
	s := &Server{session: session, store: store, jrnl: jrnl}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("vault_status",
		mcp.WithDescription("Current session state: the open blend file and any pending relocation."),
	), s.vaultStatus)

	s.mcp.AddTool(mcp.NewTool("run_sync",
		mcp.WithDescription("Run an immediate relink cycle for the open file and return the applied operations and diagnostics."),
	), s.runSync)

	s.mcp.AddTool(mcp.NewTool("read_sidecar",
		mcp.WithDescription("Read the raw sidecar document for a blend file. "+
			"Sidecars follow the canonical format; read the contract first via "+
			"the get_sidecar_contract tool or the raido://sidecar-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative blend path (e.g. scenes/shot.blend)")),
	), s.readSidecar)

	s.mcp.AddTool(mcp.NewTool("get_sidecar_contract",
		mcp.WithDescription("Returns the canonical Raido sidecar format contract. "+
			"Call this before reading or editing sidecar files to understand their structure."),
	), s.getSidecarContract)

	s.mcp.AddTool(mcp.NewTool("list_history",
		mcp.WithDescription("List recent relink cycles, newest first."),
	), s.listHistory)

	s.mcp.AddTool(mcp.NewTool("list_diagnostics",
		mcp.WithDescription("List the newest recorded diagnostics across all cycles."),
	), s.listDiagnostics)

	s.mcp.AddTool(mcp.NewTool("pending_relocation",
		mcp.WithDescription("Report whether the open file's redirect document declares a new location."),
	), s.pendingRelocation)

	s.mcp.AddTool(mcp.NewTool("confirm_relocation",
		mcp.WithDescription("Accept the pending relocation: re-home the session and its sidecar to the new path."),
	), s.confirmRelocation)

	// Resource: sidecar format contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://sidecar-format", "Sidecar Format Contract",
			mcp.WithResourceDescription("Canonical Markdown sidecar format that all tracked files follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSidecarFormatResource,
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

func (s *Server) vaultStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, candidate := s.session.Relocation()
	out, _ := json.MarshalIndent(map[string]string{
		"file_path":            s.session.State().FilePath(),
		"relocation_state":     state.String(),
		"relocation_candidate": candidate,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) runSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.session.SyncNow()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readSidecar(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := s.store.Read(sidecar.SidecarPath(path))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("no sidecar for: %s", path)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) listHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.jrnl == nil {
		return mcp.NewToolResultError("no journal is open"), nil
	}
	cycles, err := s.jrnl.History(0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(cycles, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.jrnl == nil {
		return mcp.NewToolResultError("no journal is open"), nil
	}
	diags, err := s.jrnl.RecentDiagnostics(0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(diags) == 0 {
		return mcp.NewToolResultText("no diagnostics recorded"), nil
	}
	out, _ := json.MarshalIndent(diags, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) pendingRelocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, candidate := s.session.Relocation()
	out, _ := json.MarshalIndent(map[string]string{
		"file_path": s.session.State().FilePath(),
		"state":     state.String(),
		"new_path":  candidate,
	}, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) confirmRelocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	newPath, err := s.session.ConfirmRelocation()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("relocated to: %s", newPath)), nil
}

func (s *Server) getSidecarContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SidecarFormatContract), nil
}

func (s *Server) readSidecarFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://sidecar-format",
			MIMEType: "text/markdown",
			Text:     SidecarFormatContract,
		},
	}, nil
}
