package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/use-agent/markdowner/llm"
	"github.com/use-agent/markdowner/models"
)

// CLI flags
var (
	apiURL   = flag.String("api-url", "http://localhost:8080", "markdowner base URL")
	token    = flag.String("token", "", "trusted bearer token; without it runs may hit the rate limit")
	runs     = flag.Int("runs", 3, "Number of runs per URL; run 1 is cold, later runs should hit the cache")
	detailed = flag.Bool("detailed", false, "request enableDetailedResponse=true")
	output   = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Test URLs covering 5 site types plus a tweet.
var testURLs = []struct {
	Label string
	URL   string
}{
	{"Static", "https://example.com"},
	{"Blog", "https://go.dev/blog/go1.21"},
	{"Docs", "https://go.dev/doc/effective_go"},
	{"News", "https://www.bbc.com/news"},
	{"Complex", "https://github.com/go-rod/rod"},
	{"Tweet", "https://x.com/golang/status/1696269729291796495"},
}

// --- Benchmark result types ---

type runResult struct {
	Run           int    `json:"run"`
	LatencyMs     int64  `json:"latency_ms"`
	StatusCode    int    `json:"status_code"`
	ContentLength int    `json:"content_length"`
	Tokens        int    `json:"tokens"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

type urlSummary struct {
	ColdMs        int64   `json:"cold_ms"`
	WarmMs        float64 `json:"warm_ms"`
	Tokens        int     `json:"tokens"`
	ContentLength int     `json:"content_length"`
}

type urlResult struct {
	URL     string      `json:"url"`
	Label   string      `json:"label"`
	Runs    []runResult `json:"runs"`
	Summary *urlSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Detailed   bool        `json:"detailed"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	fmt.Println("=== markdowner Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure markdowner is running (e.g. go run ./cmd/markdowner)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
		Detailed:   *detailed,
	}

	client := &http.Client{Timeout: 120 * time.Second}
	for _, t := range testURLs {
		fmt.Printf("Benchmarking [%s] %s ...\n", t.Label, t.URL)
		ur := urlResult{URL: t.URL, Label: t.Label}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := benchmarkURL(client, t.URL, i)
			if rr.Success {
				fmt.Printf("OK  %dms  ~%d tokens\n", rr.LatencyMs, rr.Tokens)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Summary = summarize(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	// Print summary table.
	printTable(report.Results)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func benchmarkURL(client *http.Client, target string, run int) runResult {
	rr := runResult{Run: run}

	q := url.Values{}
	q.Set("url", target)
	if *detailed {
		q.Set("enableDetailedResponse", "true")
	}

	req, err := http.NewRequest(http.MethodGet, *apiURL+"/?"+q.Encode(), nil)
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	rr.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}

	md := string(body)
	rr.StatusCode = resp.StatusCode
	rr.ContentLength = len(md)
	rr.Tokens = llm.EstimateTokens(md)
	switch {
	case resp.StatusCode != http.StatusOK:
		rr.Error = strings.TrimSpace(md)
	case models.IsSentinel(md):
		rr.Error = md
	default:
		rr.Success = true
	}
	return rr
}

// summarize reports the first successful run as cold and averages the rest.
func summarize(runs []runResult) *urlSummary {
	var s *urlSummary
	var warm int
	for _, r := range runs {
		if !r.Success {
			continue
		}
		if s == nil {
			s = &urlSummary{ColdMs: r.LatencyMs, Tokens: r.Tokens, ContentLength: r.ContentLength}
			continue
		}
		warm++
		s.WarmMs += float64(r.LatencyMs)
	}
	if s != nil && warm > 0 {
		s.WarmMs /= float64(warm)
	}
	return s
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tCold\tWarm (cached)\tTokens\tContent Len\n")
	fmt.Fprintf(w, "───\t────\t─────────────\t──────\t───────────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.0fms\t%s\t%s\n",
			truncateURL(r.URL, 40),
			r.Summary.ColdMs,
			r.Summary.WarmMs,
			formatInt(r.Summary.Tokens),
			formatInt(r.Summary.ContentLength),
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var result []byte
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}
	return string(result)
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
