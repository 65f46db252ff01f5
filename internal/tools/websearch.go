package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SearchEngine is one configured SearXNG-compatible aggregator endpoint.
type SearchEngine struct {
	ID  string
	URL string
}

// WebSearchTool calls the configured search aggregator's JSON API and
// returns up to 5 "title | url | snippet" lines.
type WebSearchTool struct {
	Engines       map[string]SearchEngine
	DefaultEngine string
	http          *http.Client
}

func NewWebSearchTool(engines map[string]SearchEngine, defaultEngine string) *WebSearchTool {
	return &WebSearchTool{
		Engines:       engines,
		DefaultEngine: defaultEngine,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *WebSearchTool) Name() string        { return "web_search" }
func (w *WebSearchTool) Tier() Tier          { return TierSubagent }
func (w *WebSearchTool) Description() string { return "Search the web via the configured search aggregator." }

func (w *WebSearchTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":  map[string]any{"type": "string"},
			"engine": map[string]any{"type": "string", "description": "optional search engine id"},
		},
		"required": []string{"query"},
	}
}

type searxngResult struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (w *WebSearchTool) Run(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return "error: query is required", nil
	}

	engineID, _ := args["engine"].(string)
	if engineID == "" {
		engineID = w.DefaultEngine
	}
	engine, ok := w.Engines[engineID]
	if !ok {
		return fmt.Sprintf("error: unknown search engine %q", engineID), nil
	}

	reqURL := engine.URL
	sep := "?"
	if strings.Contains(reqURL, "?") {
		sep = "&"
	}
	reqURL += sep + "q=" + url.QueryEscape(query) + "&format=json"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Sprintf("error: building request: %s", truncate(err.Error(), 300)), nil
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Sprintf("error: search request failed: %s", truncate(err.Error(), 300)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("error: search aggregator returned status %d", resp.StatusCode), nil
	}

	var parsed searxngResult
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Sprintf("error: decoding search results: %s", truncate(err.Error(), 300)), nil
	}

	if len(parsed.Results) == 0 {
		return "no results", nil
	}

	var b strings.Builder
	for i, r := range parsed.Results {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "%s | %s | %s\n", r.Title, r.URL, truncate(r.Content, 200))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
