package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bobmcallan/folio-portal/internal/config"
)

// VersionTool returns the mcp.Tool definition for the combined get_version tool.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get folio-portal and folio-server versions. Use this to verify connectivity."),
	)
}

// VersionToolHandler returns a handler that combines folio-portal and
// folio-server version info.
func VersionToolHandler(apiURL string, httpClient *http.Client) server.ToolHandlerFunc {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := map[string]config.BuildInfo{"folio_portal": config.CurrentBuild()}

		// folio-server is optional here; an unreachable server just leaves it out.
		if upstream, err := fetchServerVersion(ctx, httpClient, apiURL); err == nil {
			result["folio_server"] = upstream
		}

		out, err := json.Marshal(result)
		if err != nil {
			return errorResult("failed to marshal version info"), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(out))},
		}, nil
	}
}

func fetchServerVersion(ctx context.Context, httpClient *http.Client, apiURL string) (config.BuildInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(apiURL, "/")+"/api/version", nil)
	if err != nil {
		return config.BuildInfo{}, err
	}
	req.Header.Set("User-Agent", config.UserAgent())

	resp, err := httpClient.Do(req)
	if err != nil {
		return config.BuildInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return config.BuildInfo{}, fmt.Errorf("folio-server version: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return config.BuildInfo{}, err
	}
	var raw map[string]string
	if err := json.Unmarshal(body, &raw); err != nil {
		return config.BuildInfo{}, err
	}
	commit := raw["git_commit"]
	if commit == "" {
		commit = raw["commit"]
	}
	return config.BuildInfo{Version: raw["version"], Build: raw["build"], Commit: commit}, nil
}
