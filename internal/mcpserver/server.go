// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes keyhash tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/keyhash/internal/checksum"
	"github.com/starford/keyhash/internal/extract"
	"github.com/starford/keyhash/internal/ledger"
	"github.com/starford/keyhash/internal/pairs"
	"github.com/starford/keyhash/internal/seal"
)

// LayoutURI names the document layout resource.
const LayoutURI = "keyhash://document-layout"

// Server wraps the MCP server with keyhash tools.
type Server struct {
	mcp     *server.MCPServer
	service *extract.Service
	history ledger.Reader
	sealer  *seal.Sealer
}

// New creates a new MCP server with all keyhash tools registered.
// history may be nil when the ledger is disabled.
func New(service *extract.Service, history ledger.Reader, sealer *seal.Sealer) *Server {
	s := &Server{service: service, history: history, sealer: sealer}

	s.mcp = server.NewMCPServer(
		"keyhash",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("extract_key",
		mcp.WithDescription("Hash the Info value stored under a key of a nested JSON document "+
			"and write it to a {key}_hashed_{unix}.txt file. Read the keyhash://document-layout "+
			"resource for the expected document shape."),
		mcp.WithString("source", mcp.Required(), mcp.Description("Path of the JSON document")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Record key under the top-level \"A\" object")),
	), s.extractKey)

	s.mcp.AddTool(mcp.NewTool("hash_text",
		mcp.WithDescription("Return the base64 digest of a string without writing a file."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text to hash")),
		mcp.WithString("algorithm", mcp.Description("sha256 (default) or blake3")),
	), s.hashText)

	s.mcp.AddTool(mcp.NewTool("encrypt_message",
		mcp.WithDescription("Encrypt a message with a 32-character secret."),
		mcp.WithString("message", mcp.Required()),
		mcp.WithString("secret", mcp.Required(), mcp.Description("Exactly 32 characters")),
	), s.encryptMessage)

	s.mcp.AddTool(mcp.NewTool("decrypt_message",
		mcp.WithDescription("Decrypt a message produced by encrypt_message."),
		mcp.WithString("ciphertext", mcp.Required()),
		mcp.WithString("secret", mcp.Required(), mcp.Description("Exactly 32 characters")),
	), s.decryptMessage)

	s.mcp.AddTool(mcp.NewTool("sample_pairs",
		mcp.WithDescription("Sample three adjacent letter pairs from an alphabetic word."),
		mcp.WithString("word", mcp.Required()),
	), s.samplePairs)

	s.mcp.AddTool(mcp.NewTool("list_artifacts",
		mcp.WithDescription("List previously written artifacts, newest first."),
		mcp.WithString("key", mcp.Description("Only artifacts for this key")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50)")),
	), s.listArtifacts)

	s.mcp.AddTool(mcp.NewTool("get_document_layout",
		mcp.WithDescription("Returns the document layout extract_key expects."),
	), s.getDocumentLayout)

	s.mcp.AddResource(
		mcp.NewResource(LayoutURI, "Document Layout",
			mcp.WithResourceDescription("Shape of the nested JSON documents keyhash reads."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLayoutResource,
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

func (s *Server) extractKey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.service.Extract(ctx, source, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(a, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) hashText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	alg := s.service.Algorithm()
	if v, aErr := req.RequireString("algorithm"); aErr == nil && v != "" {
		alg = checksum.Algorithm(v)
	}
	digest, err := checksum.HashText(alg, text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(digest), nil
}

func (s *Server) encryptMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	secret, err := req.RequireString("secret")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ct, err := s.sealer.Encrypt(message, secret)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(ct), nil
}

func (s *Server) decryptMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ct, err := req.RequireString("ciphertext")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	secret, err := req.RequireString("secret")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pt, err := s.sealer.Decrypt(ct, secret)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(pt), nil
}

func (s *Server) samplePairs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	word, err := req.RequireString("word")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	got, err := pairs.Sample(word, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.Marshal(got)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listArtifacts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.history == nil {
		return mcp.NewToolResultError("ledger is disabled"), nil
	}
	key := ""
	if k, err := req.RequireString("key"); err == nil {
		key = k
	}
	limit := req.GetInt("limit", ledger.DefaultLimit)

	rows, err := s.history.List(key, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("no artifacts found for %q", key)), nil
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getDocumentLayout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DocumentLayout), nil
}

func (s *Server) readLayoutResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      LayoutURI,
			MIMEType: "text/markdown",
			Text:     DocumentLayout,
		},
	}, nil
}
