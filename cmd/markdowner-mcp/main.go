package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// pageResult mirrors one element of the markdowner JSON response.
type pageResult struct {
	URL      string `json:"url"`
	Markdown string `json:"md"`
}

func main() {
	apiURL := os.Getenv("MARKDOWNER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	// Optional: a trusted token lifts the rate limit.
	token := os.Getenv("MARKDOWNER_TOKEN")

	s := server.NewMCPServer(
		"markdowner",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	convertTool := mcp.NewTool("convert_url",
		mcp.WithDescription("Convert a web page (or a tweet) to clean markdown. Pages are rendered in a headless browser, so JavaScript-heavy sites work."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Full http(s) URL of the page to convert"),
		),
		mcp.WithBoolean("detailed",
			mcp.Description("Convert the whole page instead of only the main article (default: false)"),
		),
		mcp.WithBoolean("crawl_subpages",
			mcp.Description("Also convert up to 10 links that start with url (default: false)"),
		),
		mcp.WithBoolean("llm_filter",
			mcp.Description("Strip ads and boilerplate with a language model; slower and costs extra rate limit (default: false)"),
		),
	)
	s.AddTool(convertTool, handleConvertURL(apiURL, token))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// convertQuery builds the query string of GET /.
func convertQuery(target string, detailed, crawl, llmFilter bool) string {
	q := url.Values{}
	q.Set("url", target)
	if detailed {
		q.Set("enableDetailedResponse", "true")
	}
	if crawl {
		q.Set("crawlSubpages", "true")
	}
	if llmFilter {
		q.Set("llmFilter", "true")
	}
	return q.Encode()
}

func handleConvertURL(apiURL, token string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 300 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		target, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		query := convertQuery(target,
			request.GetBool("detailed", false),
			request.GetBool("crawl_subpages", false),
			request.GetBool("llm_filter", false),
		)

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(apiURL, "/")+"/?"+query, nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		// Input and browser errors come back as plain text.
		var results []pageResult
		if err := json.Unmarshal(respBody, &results); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%d] %s", resp.StatusCode, strings.TrimSpace(string(respBody)))), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultError("no pages converted"), nil
		}

		if len(results) == 1 && resp.StatusCode == http.StatusOK {
			return mcp.NewToolResultText(results[0].Markdown), nil
		}

		var sb strings.Builder
		if resp.StatusCode == http.StatusTooManyRequests {
			sb.WriteString("Some pages were rate limited; retry later or use a trusted token.\n\n")
		}
		for i, r := range results {
			fmt.Fprintf(&sb, "--- [%d] %s ---\n%s\n\n", i+1, r.URL, r.Markdown)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
