package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/bobmcallan/folio-portal/internal/client"
	"github.com/bobmcallan/folio-portal/internal/ledger"
	"github.com/bobmcallan/folio-portal/internal/store"
)

// errorResult creates an MCP error result.
func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(message),
		},
		IsError: true,
	}
}

// jsonResult encodes v as the text content of a result.
func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.Marshal(v)
	if err != nil {
		return errorResult("failed to encode result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(out))},
	}
}

// failure turns a store or client error into an error result the model
// can act on.
func failure(err error) *mcp.CallToolResult {
	var invalid ledger.ValidationErrors
	switch {
	case errors.As(err, &invalid):
		return errorResult(invalid.Error())
	case errors.Is(err, client.ErrUnauthorized), errors.Is(err, store.ErrClosed):
		return errorResult("session expired; sign in to folio-portal again")
	case errors.Is(err, client.ErrNotFound):
		return errorResult("not found")
	default:
		return errorResult(err.Error())
	}
}

// workspace returns the caller's workspace or an error result.
func workspace(ctx context.Context) (*store.Workspace, *mcp.CallToolResult) {
	ws, ok := GetWorkspace(ctx)
	if !ok || !ws.Alive() {
		return nil, errorResult("not signed in")
	}
	return ws, nil
}
