package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/cfharvest/models"
)

func main() {
	apiURL := os.Getenv("CFHARVEST_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("CFHARVEST_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "CFHARVEST_API_KEY is required")
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(apiURL, apiKey)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(apiURL, apiKey string) *server.MCPServer {
	s := server.NewMCPServer(
		"cfharvest",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_turnstile",
		mcp.WithDescription("Open a URL in a headless browser and harvest the Cloudflare Turnstile parameters (sitekey, cData, action, chlPageData) and Cloudflare cookies. Takes 20-40 seconds."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page hosting the Turnstile widget"),
		),
		mcp.WithString("mode",
			mcp.Description("'thorough' (default) tries every site-key source; 'basic' only reads turnstile.render arguments"),
			mcp.Enum("basic", "thorough"),
		),
		mcp.WithNumber("dwell_seconds",
			mcp.Description("Seconds to wait after DOMContentLoaded for the widget to initialise (1-120)"),
		),
	)
	s.AddTool(extractTool, handleExtract(apiURL, apiKey))

	probeTool := mcp.NewTool("probe_turnstile",
		mcp.WithDescription("Fetch a URL without a browser and report whether it embeds a Turnstile widget or is a challenge page. Fast, but misses widgets injected by JavaScript."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page to probe"),
		),
	)
	s.AddTool(probeTool, handleProbe(apiURL, apiKey))

	return s
}

// apiPost sends a POST request to the cfharvest API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(apiURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func errorText(prefix string, e *models.ErrorDetail) string {
	if e == nil {
		return prefix
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func handleExtract(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 180 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := models.ExtractRequest{
			URL:          url,
			Mode:         request.GetString("mode", ""),
			DwellSeconds: request.GetInt("dwell_seconds", 0),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/extract", payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp models.ExtractResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success || resp.Result == nil {
			return mcp.NewToolResultError(errorText("extraction failed", resp.Error)), nil
		}

		out, err := json.MarshalIndent(resp.Result, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}

		text := string(out)
		if resp.SitekeySource != "" {
			text += fmt.Sprintf("\n\n---\nsitekey via %s, render hook fired: %v, %d ms",
				resp.SitekeySource, resp.HookFired, resp.Timing.TotalMs)
		} else {
			text += "\n\n---\nno Turnstile sitekey found"
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleProbe(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 60 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/probe", models.ProbeRequest{URL: url})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp models.ProbeResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if !resp.Success || resp.Result == nil {
			return mcp.NewToolResultError(errorText("probe failed", resp.Error)), nil
		}

		r := resp.Result
		var sb strings.Builder
		fmt.Fprintf(&sb, "URL: %s (HTTP %d)\n", r.FinalURL, r.StatusCode)
		if r.Title != "" {
			fmt.Fprintf(&sb, "Title: %s\n", r.Title)
		}
		fmt.Fprintf(&sb, "Turnstile detected: %v\n", r.Detected)
		fmt.Fprintf(&sb, "Challenge page: %v\n", r.ChallengePage)
		if r.Sitekey != "" {
			fmt.Fprintf(&sb, "Sitekey: %s (%s)\n", r.Sitekey, r.SitekeySource)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
