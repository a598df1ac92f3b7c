// Package mcp exposes an open document to Model Context Protocol clients.
// Every tool call is one editing intent, so agents get the same undo history
// as any other view.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/logging"
	"github.com/aretw0/tapestry/internal/presentation/graph"
	"github.com/aretw0/tapestry/pkg/document"
	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/aretw0/tapestry/pkg/persistence"
	"github.com/aretw0/tapestry/pkg/pipeline"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// GraphURI names the graph resource.
const GraphURI = "tapestry://graph"

// Server wraps a Document and exposes it as an MCP Server.
type Server struct {
	mu        sync.Mutex
	doc       *document.Document
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates a new MCP Server instance over doc.
func NewServer(doc *document.Document, opts ...Option) *Server {
	s := &Server{
		doc:       doc,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("tapestry-mcp", strings.TrimSpace(tapestry.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// Edit runs fn in the editing context shared with tool calls.
func (s *Server) Edit(fn func(d *document.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.doc)
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

type toolFunc func(ctx context.Context, d *document.Document, req mcp.CallToolRequest) (string, error)

// tool adapts fn so it runs under the edit lock and reports failures as
// tool errors, which the client shows to the model.
func (s *Server) tool(name string, fn toolFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var text string
		err := s.Edit(func(d *document.Document) error {
			var err error
			text, err = fn(ctx, d, req)
			return err
		})
		if err != nil {
			s.logger.Debug("MCP tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the document graph: nodes with properties and positions, and connections."),
	), s.tool("get_graph", getGraph))

	s.mcpServer.AddTool(mcp.NewTool("get_mermaid",
		mcp.WithDescription("Get the document graph as a Mermaid diagram."),
	), s.tool("get_mermaid", func(_ context.Context, d *document.Document, _ mcp.CallToolRequest) (string, error) {
		return graph.GenerateMermaid(d.Snapshot(), &graph.Overlay{Selected: d.Selection().Nodes}), nil
	}))

	s.mcpServer.AddTool(mcp.NewTool("create_node",
		mcp.WithDescription("Create a node of a registered type at a canvas position."),
		mcp.WithString("type", mcp.Required(), mcp.Description("Node type, e.g. Task, Click, Log")),
		mcp.WithNumber("x", mcp.Description("Canvas x coordinate")),
		mcp.WithNumber("y", mcp.Description("Canvas y coordinate")),
		mcp.WithString("properties", mcp.Description("JSON object of initial property values")),
	), s.tool("create_node", createNode))

	s.mcpServer.AddTool(mcp.NewTool("delete_node",
		mcp.WithDescription("Delete a node and every connection touching it."),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node ID")),
	), s.tool("delete_node", func(_ context.Context, d *document.Document, req mcp.CallToolRequest) (string, error) {
		id, err := req.RequireString("node_id")
		if err != nil {
			return "", err
		}
		return "deleted " + id, d.DeleteNodes(domain.NodeID(id))
	}))

	s.mcpServer.AddTool(mcp.NewTool("connect",
		mcp.WithDescription("Connect an output port to an input port."),
		mcp.WithString("source_node", mcp.Required()),
		mcp.WithString("source_port", mcp.Required(), mcp.Description("Output port, e.g. next, on_error, interrupt")),
		mcp.WithString("target_node", mcp.Required()),
		mcp.WithString("target_port", mcp.Description("Input port (default: in)")),
	), s.tool("connect", connect))

	s.mcpServer.AddTool(mcp.NewTool("disconnect",
		mcp.WithDescription("Remove a connection."),
		mcp.WithString("connection_id", mcp.Required()),
	), s.tool("disconnect", func(_ context.Context, d *document.Document, req mcp.CallToolRequest) (string, error) {
		id, err := req.RequireString("connection_id")
		if err != nil {
			return "", err
		}
		return "disconnected " + id, d.Disconnect(domain.ConnectionID(id))
	}))

	s.mcpServer.AddTool(mcp.NewTool("set_property",
		mcp.WithDescription("Set one property of a node. The value is validated against the node type."),
		mcp.WithString("node_id", mcp.Required()),
		mcp.WithString("key", mcp.Required()),
		mcp.WithString("value", mcp.Required(), mcp.Description("JSON encoded value")),
	), s.tool("set_property", setProperty))

	s.mcpServer.AddTool(mcp.NewTool("move_node",
		mcp.WithDescription("Move a node to a canvas position."),
		mcp.WithString("node_id", mcp.Required()),
		mcp.WithNumber("x", mcp.Required()),
		mcp.WithNumber("y", mcp.Required()),
	), s.tool("move_node", func(_ context.Context, d *document.Document, req mcp.CallToolRequest) (string, error) {
		id, err := req.RequireString("node_id")
		if err != nil {
			return "", err
		}
		pos := domain.Position{X: req.GetFloat("x", 0), Y: req.GetFloat("y", 0)}
		return fmt.Sprintf("moved %s to %g, %g", id, pos.X, pos.Y), d.Move(domain.NodeID(id), pos)
	}))

	s.mcpServer.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Undo the last edit."),
	), s.tool("undo", func(_ context.Context, d *document.Document, _ mcp.CallToolRequest) (string, error) {
		return step(d.Undo, "undone", "nothing to undo")
	}))

	s.mcpServer.AddTool(mcp.NewTool("redo",
		mcp.WithDescription("Redo the last undone edit."),
	), s.tool("redo", func(_ context.Context, d *document.Document, _ mcp.CallToolRequest) (string, error) {
		return step(d.Redo, "redone", "nothing to redo")
	}))

	s.mcpServer.AddTool(mcp.NewTool("export_pipeline",
		mcp.WithDescription("Export the Task nodes as pipeline JSON."),
	), s.tool("export_pipeline", func(_ context.Context, d *document.Document, _ mcp.CallToolRequest) (string, error) {
		p, err := pipeline.Export(d.Graph())
		if err != nil {
			return "", err
		}
		var buf bytes.Buffer
		if err := pipeline.Encode(&buf, p); err != nil {
			return "", err
		}
		return buf.String(), nil
	}))
}

func getGraph(_ context.Context, d *document.Document, _ mcp.CallToolRequest) (string, error) {
	data, err := persistence.EncodeGraph(d.Snapshot())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func createNode(_ context.Context, d *document.Document, req mcp.CallToolRequest) (string, error) {
	tag, err := req.RequireString("type")
	if err != nil {
		return "", err
	}
	var props map[string]any
	if raw := req.GetString("properties", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &props); err != nil {
			return "", fmt.Errorf("properties must be a JSON object: %w", err)
		}
	}
	pos := domain.Position{X: req.GetFloat("x", 0), Y: req.GetFloat("y", 0)}
	id, err := d.CreateNode(domain.TypeTag(tag), pos, props)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func connect(_ context.Context, d *document.Document, req mcp.CallToolRequest) (string, error) {
	var refs [3]string
	for i, key := range []string{"source_node", "source_port", "target_node"} {
		v, err := req.RequireString(key)
		if err != nil {
			return "", err
		}
		refs[i] = v
	}
	id, err := d.Connect(
		domain.PortRef{Node: domain.NodeID(refs[0]), Port: domain.PortID(refs[1])},
		domain.PortRef{Node: domain.NodeID(refs[2]), Port: domain.PortID(req.GetString("target_port", "in"))},
	)
	if err != nil {
		return "", err
	}
	return string(id), nil
}

func setProperty(_ context.Context, d *document.Document, req mcp.CallToolRequest) (string, error) {
	id, err := req.RequireString("node_id")
	if err != nil {
		return "", err
	}
	key, err := req.RequireString("key")
	if err != nil {
		return "", err
	}
	raw, err := req.RequireString("value")
	if err != nil {
		return "", err
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return "", fmt.Errorf("value must be JSON: %w", err)
	}
	if err := d.SetProperty(domain.NodeID(id), key, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("set %s.%s", id, key), nil
}

func step(fn func() (bool, error), done, nothing string) (string, error) {
	changed, err := fn()
	if err != nil {
		return "", err
	}
	if !changed {
		return nothing, nil
	}
	return done, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(GraphURI, "Document Graph",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var text string
		err := s.Edit(func(d *document.Document) error {
			var err error
			text, err = getGraph(ctx, d, mcp.CallToolRequest{})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode graph: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      GraphURI,
				MIMEType: "application/json",
				Text:     text,
			},
		}, nil
	})
}
