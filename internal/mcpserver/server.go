// Package mcpserver provides an MCP (Model Context Protocol) server that
// lets agent contributors follow the documentation policy over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/doclife/internal/docservice"
	"github.com/starford/doclife/internal/registry"
)

// PolicyURI is the resource URI of the documentation policy contract.
const PolicyURI = "doclife://policy"

// Server wraps the MCP server with doclife tools.
type Server struct {
	mcp *server.MCPServer
	svc *docservice.Service
}

// New creates a new MCP server with all doclife tools registered.
func New(svc *docservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"doclife",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("classify_document",
		mcp.WithDescription("Classify a filename as exempt (living, edited in place) or timestamped "+
			"(instance, superseded by new files) and report a missing or malformed stamp."),
		mcp.WithString("name", mcp.Required(), mcp.Description("File name, e.g. Status-LearnApp-251017-1430.md")),
	), s.classifyDocument)

	s.mcp.AddTool(mcp.NewTool("suggest_name",
		mcp.WithDescription("Suggest a free, convention-conforming path for a new document."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Document type, e.g. Status, Plan, Protocol")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Short description, e.g. LearnApp fix wave")),
		mcp.WithString("dir", mcp.Description("Optional target directory")),
	), s.suggestName)

	s.mcp.AddTool(mcp.NewTool("check_document",
		mcp.WithDescription("Lint one document and return its classification and violations."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.checkDocument)

	s.mcp.AddTool(mcp.NewTool("read_document",
		mcp.WithDescription("Read the full content of a document, header included."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Vault-relative path")),
	), s.readDocument)

	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document. The name and metadata header are generated; "+
			"pass only the body. Read the policy first via get_documentation_policy or "+
			"the "+PolicyURI+" resource."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Document type")),
		mcp.WithString("description", mcp.Required(), mcp.Description("Short description used in the name")),
		mcp.WithString("purpose", mcp.Required(), mcp.Description("One-line purpose for the header")),
		mcp.WithString("body", mcp.Description("Markdown body without a header")),
		mcp.WithString("dir", mcp.Description("Optional target directory")),
	), s.createDocument)

	s.mcp.AddTool(mcp.NewTool("supersede_document",
		mcp.WithDescription("Write the successor of an instance document and archive the original. "+
			"Instance documents are never edited in place."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the document to supersede")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown body of the successor")),
		mcp.WithString("note", mcp.Description("Changelog note")),
	), s.supersedeDocument)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List registered documents, optionally filtered."),
		mcp.WithString("category", mcp.Description("exempt or timestamped")),
		mcp.WithString("location", mcp.Description("active, archive, project_instructions or module_docs")),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Full-text search through document names, purposes and bodies."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchDocuments)

	s.mcp.AddTool(mcp.NewTool("get_documentation_policy",
		mcp.WithDescription("Returns the documentation policy: naming, headers and lifecycle rules. "+
			"Call this before creating documents."),
	), s.getPolicy)

	s.mcp.AddResource(
		mcp.NewResource(PolicyURI, "Documentation Policy",
			mcp.WithResourceDescription("Naming, header and lifecycle rules every document must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPolicyResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

func (s *Server) classifyDocument(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cl := s.svc.Classify(name)
	out := map[string]any{
		"filename":    cl.Filename,
		"category":    cl.Category,
		"rule":        cl.Rule,
		"conditional": cl.Conditional,
		"valid":       cl.Valid(),
	}
	if cl.Err != nil {
		out["error"] = cl.Err.Error()
	}
	return jsonResult(out), nil
}

func (s *Server) suggestName(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.SuggestName(typ, desc, req.GetString("dir", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(p), nil
}

func (s *Server) checkDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc, err := s.svc.Check(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(doc), nil
}

func (s *Server) readDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Get(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	return mcp.NewToolResultText(d.Content), nil
}

func (s *Server) createDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	desc, err := req.RequireString("description")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	purpose, err := req.RequireString("purpose")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Create(ctx, docservice.CreateRequest{
		Type:        typ,
		Description: desc,
		Purpose:     purpose,
		Body:        req.GetString("body", ""),
		Dir:         req.GetString("dir", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("created: " + d.Path), nil
}

func (s *Server) supersedeDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.Supersede(ctx, path, []byte(content), req.GetString("note", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("created: " + d.Path), nil
}

func (s *Server) listDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, _, err := s.svc.List(ctx, registry.Filter{
		Category: req.GetString("category", ""),
		Location: req.GetString("location", ""),
		Limit:    1000,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no documents found"), nil
	}
	lines := make([]string, len(docs))
	for i, d := range docs {
		lines[i] = fmt.Sprintf("%s\t%s\t%d violations", d.Path, d.Category, len(d.Violations))
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) searchDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results), nil
}

func (s *Server) getPolicy(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PolicyContract(s.svc.Rules(), s.svc.Layout())), nil
}

func (s *Server) readPolicyResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      PolicyURI,
			MIMEType: "text/markdown",
			Text:     PolicyContract(s.svc.Rules(), s.svc.Layout()),
		},
	}, nil
}
