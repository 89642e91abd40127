package mcp

import (
	"context"

	"github.com/bobmcallan/folio-portal/internal/store"
)

// workspaceKey is the context key for the caller's workspace.
type workspaceKey struct{}

// WithWorkspace returns a new context carrying the caller's workspace.
func WithWorkspace(ctx context.Context, ws *store.Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey{}, ws)
}

// GetWorkspace extracts the workspace from the context, if present.
func GetWorkspace(ctx context.Context) (*store.Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey{}).(*store.Workspace)
	return ws, ok && ws != nil
}
