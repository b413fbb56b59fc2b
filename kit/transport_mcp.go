package kit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// RegisterMCPTool registers a typed handler as an MCP tool on the given
// server. Arguments are unmarshalled from req.Params.Arguments into Req;
// middlewares wrap the handler via Chain, first one outermost. Decode,
// handler and marshal failures are reported through the result error
// channel, never as protocol errors.
func RegisterMCPTool[Req any](srv *mcp.Server, tool *mcp.Tool, handle func(ctx context.Context, req *Req) (any, error), mws ...Middleware) {
	endpoint := Chain(mws...)(func(ctx context.Context, r any) (any, error) {
		return handle(ctx, r.(*Req))
	})

	srv.AddTool(tool, func(ctx context.Context, call *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req Req
		if len(call.Params.Arguments) > 0 {
			if err := json.Unmarshal(call.Params.Arguments, &req); err != nil {
				return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
			}
		}

		resp, err := endpoint(ctx, &req)
		if err != nil {
			return toolError(err), nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
