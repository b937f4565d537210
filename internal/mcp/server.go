// Package mcp exposes the context document operations as MCP tools over
// Streamable HTTP and SSE transports.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/contextdb/contextdb/internal/api/httpctx"
	"github.com/contextdb/contextdb/internal/logger"
	"github.com/contextdb/contextdb/internal/model"
	"github.com/contextdb/contextdb/internal/service"
	"github.com/contextdb/contextdb/internal/session"
)

const (
	serverName    = "ContextDB"
	serverVersion = "0.1.0"
)

// ContextOps is the slice of the context service the tools need.
type ContextOps interface {
	Create(ctx context.Context, params service.CreateContextParams) (model.Context, error)
	Get(ctx context.Context, userID uuid.UUID, name string) (model.Context, error)
	List(ctx context.Context, userID uuid.UUID, tags []string) ([]model.ContextSummary, error)
	Append(ctx context.Context, userID uuid.UUID, name string, content model.ContextContent) (model.Context, error)
	Replace(ctx context.Context, userID uuid.UUID, name string, content model.ContextContent) (model.Context, error)
	Delete(ctx context.Context, userID uuid.UUID, name string) error
}

// Server wires the MCP protocol server to the context service and the
// session registry.
type Server struct {
	mcpServer *server.MCPServer
	ops       ContextOps
	sessions  *session.Registry
	logger    *logger.Logger
}

// NewServer builds the MCP server with all tools and resources registered.
func NewServer(ops ContextOps, sessions *session.Registry, logger *logger.Logger) *Server {
	s := &Server{
		ops:      ops,
		sessions: sessions,
		logger:   logger,
	}

	hooks := &server.Hooks{}
	hooks.AddOnRegisterSession(s.onRegisterSession)
	hooks.AddOnUnregisterSession(s.onUnregisterSession)

	m := server.NewMCPServer(serverName, serverVersion,
		server.WithResourceCapabilities(false, true),
		server.WithLogging(),
		server.WithHooks(hooks),
	)

	s.registerTools(m)
	s.registerResources(m)
	s.mcpServer = m

	return s
}

// StreamableHTTPHandler returns the stateless handler for POST /mcp.
func (s *Server) StreamableHTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer,
		server.WithStateLess(true),
		server.WithHTTPContextFunc(copyIdentity),
	)
}

// SSEServer returns the SSE transport serving GET /sse and POST /messages.
func (s *Server) SSEServer() *server.SSEServer {
	return server.NewSSEServer(s.mcpServer,
		server.WithSSEEndpoint("/sse"),
		server.WithMessageEndpoint("/messages"),
		server.WithSSEContextFunc(copyIdentity),
	)
}

// copyIdentity moves the user ID resolved by the bearer middleware from the
// request context into the MCP connection context.
func copyIdentity(ctx context.Context, r *http.Request) context.Context {
	if userID, ok := httpctx.UserIDFromContext(r.Context()); ok {
		return httpctx.WithUserID(ctx, userID)
	}
	return ctx
}

func (s *Server) onRegisterSession(ctx context.Context, cs server.ClientSession) {
	userID, ok := httpctx.UserIDFromContext(ctx)
	if !ok {
		s.logger.Warn("MCP server: session registered without resolved user",
			"session_id", cs.SessionID())
		return
	}
	s.sessions.Bind(cs.SessionID(), userID)
	s.logger.Info("MCP server: session bound",
		"session_id", cs.SessionID(),
		"user_id", userID)
}

func (s *Server) onUnregisterSession(_ context.Context, cs server.ClientSession) {
	s.sessions.Release(cs.SessionID())
	s.logger.Info("MCP server: session released",
		"session_id", cs.SessionID())
}

// userIDFromRequest resolves the calling user: the stateless HTTP path
// carries it in the context, the SSE path goes through the session registry.
func (s *Server) userIDFromRequest(ctx context.Context) (uuid.UUID, bool) {
	if userID, ok := httpctx.UserIDFromContext(ctx); ok {
		return userID, true
	}
	if cs := server.ClientSessionFromContext(ctx); cs != nil {
		if userID, ok := s.sessions.Resolve(cs.SessionID()); ok {
			return userID, true
		}
	}
	return uuid.Nil, false
}

var contentProperties = map[string]any{
	"background":  map[string]any{"type": "string", "description": "Free-text project background"},
	"assumptions": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	"decisions":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	"open_items":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
	"notes":       map[string]any{"type": "string", "description": "Free-text notes"},
}

func (s *Server) registerTools(m *server.MCPServer) {
	m.AddTool(mcp.NewTool("create_context",
		mcp.WithDescription("Create a new named context for this user"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Unique context name")),
		mcp.WithString("summary", mcp.Description("Short summary of the context")),
		mcp.WithArray("tags", mcp.Description("Tags for filtering"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithObject("content", mcp.Description("Initial context content"), mcp.Properties(contentProperties)),
	), s.createContextHandler)

	m.AddTool(mcp.NewTool("get_context",
		mcp.WithDescription("Load a context by name for this user"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
	), s.getContextHandler)

	m.AddTool(mcp.NewTool("list_contexts",
		mcp.WithDescription("List all contexts for this user, optionally filtered by tags"),
		mcp.WithArray("tags", mcp.Description("Return only contexts containing all of these tags"), mcp.Items(map[string]any{"type": "string"})),
	), s.listContextsHandler)

	m.AddTool(mcp.NewTool("append_context",
		mcp.WithDescription("Append new information to an existing context"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
		mcp.WithObject("content", mcp.Required(), mcp.Description("Content to append"), mcp.Properties(contentProperties)),
	), s.appendContextHandler)

	m.AddTool(mcp.NewTool("update_context",
		mcp.WithDescription("Replace specified fields in an existing context"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
		mcp.WithObject("content", mcp.Required(), mcp.Description("Fields to overwrite"), mcp.Properties(contentProperties)),
	), s.updateContextHandler)

	m.AddTool(mcp.NewTool("delete_context",
		mcp.WithDescription("Delete a context by name for this user"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Context name")),
	), s.deleteContextHandler)
}

func (s *Server) registerResources(m *server.MCPServer) {
	m.AddResourceTemplate(mcp.NewResourceTemplate("context://{name}", "Saved contexts",
		mcp.WithTemplateDescription("Saved contexts in ContextDB"),
		mcp.WithTemplateMIMEType("application/json"),
	), s.readContextResource)
}

func (s *Server) createContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userIDFromRequest(ctx)
	if !ok {
		return mcp.NewToolResultError("Unauthorized: missing user id for session"), nil
	}

	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments"), nil
	}

	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("Context name cannot be empty"), nil
	}
	summary, _ := args["summary"].(string)
	tags := stringSlice(args["tags"])

	content, err := decodeContent(args["content"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid content: %v", err)), nil
	}

	doc, err := s.ops.Create(ctx, service.CreateContextParams{
		UserID:  userID,
		Name:    name,
		Summary: summary,
		Tags:    tags,
		Content: content,
	})
	if err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			return mcp.NewToolResultText(fmt.Sprintf("Context '%s' already exists.", name)), nil
		}
		s.logger.Error("MCP server: create_context failed", "name", name, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create context: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Created context '%s' (v%d).", doc.Name, doc.Version)), nil
}

func (s *Server) getContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userIDFromRequest(ctx)
	if !ok {
		return mcp.NewToolResultError("Unauthorized: missing user id for session"), nil
	}

	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments"), nil
	}
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("Context name cannot be empty"), nil
	}

	doc, err := s.ops.Get(ctx, userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf("Context '%s' not found.", name)), nil
		}
		s.logger.Error("MCP server: get_context failed", "name", name, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("Failed to load context: %v", err)), nil
	}

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode context: %v", err)), nil
	}

	return mcp.NewToolResultText(string(encoded)), nil
}

func (s *Server) listContextsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userIDFromRequest(ctx)
	if !ok {
		return mcp.NewToolResultError("Unauthorized: missing user id for session"), nil
	}

	var tags []string
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		tags = stringSlice(args["tags"])
	}

	summaries, err := s.ops.List(ctx, userID, tags)
	if err != nil {
		s.logger.Error("MCP server: list_contexts failed", "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list contexts: %v", err)), nil
	}
	if summaries == nil {
		summaries = []model.ContextSummary{}
	}

	encoded, err := json.MarshalIndent(map[string]any{"contexts": summaries}, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode contexts: %v", err)), nil
	}

	return mcp.NewToolResultText(string(encoded)), nil
}

func (s *Server) appendContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.mutateHandler(ctx, request, "Appended to", s.ops.Append)
}

func (s *Server) updateContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.mutateHandler(ctx, request, "Updated", s.ops.Replace)
}

func (s *Server) mutateHandler(
	ctx context.Context,
	request mcp.CallToolRequest,
	verb string,
	op func(ctx context.Context, userID uuid.UUID, name string, content model.ContextContent) (model.Context, error),
) (*mcp.CallToolResult, error) {
	userID, ok := s.userIDFromRequest(ctx)
	if !ok {
		return mcp.NewToolResultError("Unauthorized: missing user id for session"), nil
	}

	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments"), nil
	}
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("Context name cannot be empty"), nil
	}

	content, err := decodeContent(args["content"])
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid content: %v", err)), nil
	}

	doc, err := op(ctx, userID, name, content)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return mcp.NewToolResultText(fmt.Sprintf("Context '%s' not found.", name)), nil
		case errors.Is(err, model.ErrVersionConflict):
			return mcp.NewToolResultText(fmt.Sprintf("Context '%s' was modified concurrently, please retry.", name)), nil
		default:
			s.logger.Error("MCP server: context mutation failed", "name", name, "error", err.Error())
			return mcp.NewToolResultError(fmt.Sprintf("Failed to update context: %v", err)), nil
		}
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s context '%s' (v%d).", verb, doc.Name, doc.Version)), nil
}

func (s *Server) deleteContextHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, ok := s.userIDFromRequest(ctx)
	if !ok {
		return mcp.NewToolResultError("Unauthorized: missing user id for session"), nil
	}

	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid arguments"), nil
	}
	name, _ := args["name"].(string)
	if name == "" {
		return mcp.NewToolResultError("Context name cannot be empty"), nil
	}

	err := s.ops.Delete(ctx, userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return mcp.NewToolResultText(fmt.Sprintf("Context '%s' not found.", name)), nil
		}
		s.logger.Error("MCP server: delete_context failed", "name", name, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("Failed to delete context: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Deleted context '%s'.", name)), nil
}

func (s *Server) readContextResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	userID, ok := s.userIDFromRequest(ctx)
	if !ok {
		return nil, fmt.Errorf("unauthorized: missing user id for session")
	}

	name, err := contextNameFromURI(request.Params.URI)
	if err != nil {
		return nil, err
	}

	doc, err := s.ops.Get(ctx, userID, name)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return []mcp.ResourceContents{}, nil
		}
		return nil, fmt.Errorf("failed to load context: %w", err)
	}

	encoded, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode context: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(encoded),
		},
	}, nil
}

// contextNameFromURI extracts the document name from a context://<name> URI.
func contextNameFromURI(uri string) (string, error) {
	raw := strings.TrimPrefix(uri, "context://")
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" || raw == uri {
		return "", fmt.Errorf("invalid context URI: %s", uri)
	}
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("invalid context URI: %s", uri)
	}
	return name, nil
}

// decodeContent validates and converts a raw tool argument into the typed
// payload. Unknown fields are rejected at the boundary.
func decodeContent(v any) (model.ContextContent, error) {
	var content model.ContextContent
	if v == nil {
		return content, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return content, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&content); err != nil {
		return content, err
	}

	return content, nil
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
