package catalog

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/moisson/kit"
)

// RegisterMCP registers catalog read tools on an MCP server.
func (s *Store) RegisterMCP(srv *mcp.Server) {
	s.registerRawPage(srv)
	s.registerCleanedPage(srv)
	s.registerDuplicates(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	sch := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		sch["required"] = required
	}
	return sch
}

func (s *Store) registerRawPage(srv *mcp.Server) {
	type req struct {
		ID string `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "catalog_raw_page",
		Description: "Look up a raw page provenance record by task id",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Task id (12 hex chars)"},
		}, []string{"id"}),
	}

	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.GetRawPage(ctx, p.ID)
	})
}

func (s *Store) registerCleanedPage(srv *mcp.Server) {
	type req struct {
		ID string `json:"id"`
	}

	tool := &mcp.Tool{
		Name:        "catalog_cleaned_page",
		Description: "Look up a cleaned page provenance record by task id",
		InputSchema: inputSchema(map[string]any{
			"id": map[string]any{"type": "string", "description": "Task id (12 hex chars)"},
		}, []string{"id"}),
	}

	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		return s.GetCleanedPage(ctx, p.ID)
	})
}

func (s *Store) registerDuplicates(srv *mcp.Server) {
	type req struct {
		Fingerprint string `json:"fingerprint"`
	}

	tool := &mcp.Tool{
		Name:        "catalog_duplicates",
		Description: "List cleaned pages sharing a content fingerprint",
		InputSchema: inputSchema(map[string]any{
			"fingerprint": map[string]any{"type": "string", "description": "SHA-256 hex of cleaned text"},
		}, []string{"fingerprint"}),
	}

	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		pages, err := s.FindByFingerprint(ctx, p.Fingerprint)
		if err != nil {
			return nil, err
		}
		return map[string]any{"count": len(pages), "pages": pages}, nil
	})
}
