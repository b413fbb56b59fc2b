package runner

import (
	"context"
	"errors"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/moisson/identity"
	"github.com/hazyhaar/moisson/kit"
)

// RegisterMCP registers the batch tool on an MCP server.
func (r *Runner) RegisterMCP(srv *mcp.Server) {
	r.registerScrapeBatch(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func (r *Runner) registerScrapeBatch(srv *mcp.Server) {
	type req struct {
		URLs  []string `json:"urls"`
		Tasks []Task   `json:"tasks"`
	}

	tool := &mcp.Tool{
		Name:        "scrape_batch",
		Description: "Fetch, extract and catalog a batch of URLs; returns one outcome per task",
		InputSchema: inputSchema(map[string]any{
			"urls": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "URLs to scrape; task ids are derived from each URL",
			},
			"tasks": map[string]any{
				"type":        "array",
				"description": "Pre-built tasks with explicit ids; overrides urls when both are given",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":  map[string]any{"type": "string"},
						"url": map[string]any{"type": "string"},
					},
					"required": []string{"url"},
				},
			},
		}, nil),
	}

	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, p *req) (any, error) {
		tasks := p.Tasks
		if len(tasks) == 0 {
			for _, u := range p.URLs {
				tasks = append(tasks, Task{ID: identity.DeriveID(u), URL: u})
			}
		}
		if len(tasks) == 0 {
			return nil, errors.New("no tasks or urls given")
		}
		for i := range tasks {
			if tasks[i].ID == "" {
				tasks[i].ID = identity.DeriveID(tasks[i].URL)
			}
		}
		outcomes := r.Run(ctx, tasks)
		return map[string]any{
			"counts":   CountByStatus(outcomes),
			"outcomes": outcomes,
		}, nil
	})
}
