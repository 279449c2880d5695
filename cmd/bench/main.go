package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joeychilson/textfilter/config"
	api "github.com/joeychilson/textfilter/server"
)

const (
	defaultServerURL = "http://localhost:8080"
)

type BenchmarkResult struct {
	Pipeline    string          `json:"pipeline,omitempty"`
	Input       string          `json:"input"`
	Output      string          `json:"output"`
	Requests    int             `json:"requests"`
	CacheHits   int             `json:"cache_hits"`
	Timings     []time.Duration `json:"-"`
	RequestTime string          `json:"request_time"`
}

func main() {
	serverURL := flag.String("server", defaultServerURL, "Server URL")
	pipeline := flag.String("pipeline", "", "Configured pipeline to run")
	filters := flag.String("filters", "", "Comma-separated filters to run as ad hoc steps")
	text := flag.String("text", "", "Text to normalize (required)")
	apiKey := flag.String("key", os.Getenv("API_KEY"), "API key")
	count := flag.Int("n", 10, "Number of requests")
	jsonOutput := flag.Bool("json", false, "Output as JSON")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "textfilter Benchmark Tool - Normalize text with timing\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "    %s -pipeline title -text 'THE LORD OF THE RINGS'\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "    %s -filters whitespace,sentenceCase -text 'hello   world' -json\n", os.Args[0])
	}

	flag.Parse()

	if *text == "" {
		fmt.Fprintf(os.Stderr, "Error: -text flag is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if (*pipeline == "") == (*filters == "") {
		fmt.Fprintf(os.Stderr, "Error: exactly one of -pipeline or -filters is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	if *count < 1 {
		*count = 1
	}

	req := api.NormalizeRequest{Pipeline: *pipeline, Text: *text}
	if *filters != "" {
		for name := range strings.SplitSeq(*filters, ",") {
			req.Steps = append(req.Steps, config.StepConfig{Filter: strings.TrimSpace(name)})
		}
	}

	result, err := benchmarkNormalize(*serverURL, *apiKey, req, *count)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		outputJSON(result)
	} else {
		outputHuman(result)
	}
}

func benchmarkNormalize(serverURL, apiKey string, reqBody api.NormalizeRequest, count int) (*BenchmarkResult, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(serverURL, "/") + "/v1/normalize"
	result := &BenchmarkResult{
		Pipeline:    reqBody.Pipeline,
		Input:       reqBody.Text,
		RequestTime: time.Now().Format(time.RFC3339),
	}

	for range count {
		resp, timeTaken, err := normalize(endpoint, apiKey, jsonData)
		if err != nil {
			return nil, err
		}

		result.Requests++
		result.Output = resp.Output
		result.Timings = append(result.Timings, timeTaken)
		if resp.Cached {
			result.CacheHits++
		}
	}

	return result, nil
}

func normalize(endpoint, apiKey string, jsonData []byte) (*api.NormalizeResponse, time.Duration, error) {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to normalize: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	timeTaken := time.Since(start)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var normalizeResp api.NormalizeResponse
	if err := json.Unmarshal(body, &normalizeResp); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &normalizeResp, timeTaken, nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}

func outputJSON(result *BenchmarkResult) {
	sorted := slices.Sorted(slices.Values(result.Timings))

	output := map[string]any{
		"request_time": result.RequestTime,
		"input":        result.Input,
		"output":       result.Output,
		"requests":     result.Requests,
		"cache_hits":   result.CacheHits,
		"first_ms":     result.Timings[0].Milliseconds(),
		"p50_ms":       percentile(sorted, 0.5).Milliseconds(),
		"p95_ms":       percentile(sorted, 0.95).Milliseconds(),
		"max_ms":       sorted[len(sorted)-1].Milliseconds(),
	}
	if result.Pipeline != "" {
		output["pipeline"] = result.Pipeline
	}

	jsonData, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting JSON: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(string(jsonData))
}

func outputHuman(result *BenchmarkResult) {
	sorted := slices.Sorted(slices.Values(result.Timings))

	fmt.Println("=== textfilter Normalize Benchmark Results ===")
	fmt.Println()
	if result.Pipeline != "" {
		fmt.Printf("Pipeline:         %s\n", result.Pipeline)
	} else {
		fmt.Printf("Pipeline:         (ad hoc steps)\n")
	}
	fmt.Printf("Input:            %s\n", truncateForDisplay(result.Input, 100))
	fmt.Printf("Output:           %s\n", truncateForDisplay(result.Output, 100))
	fmt.Printf("Requests:         %d\n", result.Requests)
	fmt.Printf("Cache Hits:       %d\n", result.CacheHits)
	fmt.Println()
	fmt.Printf("First Request:    %v\n", result.Timings[0])
	fmt.Printf("p50:              %v\n", percentile(sorted, 0.5))
	fmt.Printf("p95:              %v\n", percentile(sorted, 0.95))
	fmt.Printf("Max:              %v\n", sorted[len(sorted)-1])
	fmt.Printf("Request Time:     %s\n", result.RequestTime)
}

func truncateForDisplay(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
