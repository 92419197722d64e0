package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// extractRequest mirrors the specgrab API request model.
type extractRequest struct {
	Identifier string `json:"identifier"`
	MaxAge     int    `json:"max_age,omitempty"`
}

// extractResponse mirrors the specgrab API response model.
type extractResponse struct {
	Success         bool              `json:"success"`
	Description     string            `json:"description"`
	Specifications  map[string]string `json:"specifications"`
	Image           string            `json:"image"`
	DiagnosticsPath string            `json:"diagnostics_path"`
	SourceURL       string            `json:"source_url"`
	CacheStatus     string            `json:"cache_status"`
	Error           *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SPECGRAB_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SPECGRAB_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "SPECGRAB_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"specgrab",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_product",
		mcp.WithDescription("Open the vendor product page for an identifier in a real browser and return its description, technical specifications and primary image URL."),
		mcp.WithString("identifier",
			mcp.Required(),
			mcp.Description("Vendor product identifier, substituted into the configured product URL"),
		),
		mcp.WithNumber("max_age",
			mcp.Description("Serve a cached result younger than this many milliseconds (default: 0, always extract)"),
		),
	)
	s.AddTool(extractTool, handleExtractProduct(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleExtractProduct(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		identifier, err := request.RequireString("identifier")
		if err != nil {
			return mcp.NewToolResultError("identifier is required"), nil
		}

		body, err := json.Marshal(extractRequest{
			Identifier: identifier,
			MaxAge:     request.GetInt("max_age", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/extract", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var er extractResponse
		if err := json.Unmarshal(respBody, &er); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !er.Success {
			errMsg := "extraction failed"
			if er.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", er.Error.Code, er.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatResult(&er)), nil
	}
}

// formatResult renders an extraction as plain text with specifications
// sorted by label.
func formatResult(er *extractResponse) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n", er.SourceURL)
	if er.Image != "" {
		fmt.Fprintf(&sb, "Image: %s\n", er.Image)
	}
	if er.Description != "" {
		fmt.Fprintf(&sb, "\n%s\n", er.Description)
	}

	if len(er.Specifications) == 0 {
		sb.WriteString("\nNo specifications found.")
		if er.DiagnosticsPath != "" {
			fmt.Fprintf(&sb, " Diagnostics: %s", er.DiagnosticsPath)
		}
		return sb.String()
	}

	labels := make([]string, 0, len(er.Specifications))
	for k := range er.Specifications {
		labels = append(labels, k)
	}
	sort.Strings(labels)

	sb.WriteString("\nSpecifications:\n")
	for _, k := range labels {
		fmt.Fprintf(&sb, "- %s: %s\n", k, er.Specifications[k])
	}
	if er.CacheStatus == "hit" {
		sb.WriteString("\n(cached)")
	}
	return strings.TrimRight(sb.String(), "\n")
}
