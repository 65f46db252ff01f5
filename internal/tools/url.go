package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

const urlToolTimeout = 15 * time.Second
const readURLMaxChars = 8000

// CheckURLTool issues an HTTP GET with redirects and reports reachability,
// status code, and final URL.
type CheckURLTool struct{ http *http.Client }

func NewCheckURLTool() *CheckURLTool {
	return &CheckURLTool{http: &http.Client{Timeout: urlToolTimeout}}
}

func (c *CheckURLTool) Name() string        { return "check_url" }
func (c *CheckURLTool) Tier() Tier          { return TierSubagent }
func (c *CheckURLTool) Description() string { return "Check whether a URL is reachable." }

func (c *CheckURLTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []string{"url"},
	}
}

func (c *CheckURLTool) Run(ctx context.Context, args map[string]any) (string, error) {
	target, _ := args["url"].(string)
	if strings.TrimSpace(target) == "" {
		return "error: url is required", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Sprintf("unreachable: %s", truncate(err.Error(), 300)), nil
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Sprintf("unreachable: %s", truncate(err.Error(), 300)), nil
	}
	defer resp.Body.Close()

	return fmt.Sprintf("reachable: true\nstatus: %d\nfinal_url: %s", resp.StatusCode, resp.Request.URL.String()), nil
}

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ReadURLTool fetches a page with a browser user-agent, strips HTML to
// readable text, and truncates to ~8000 characters.
type ReadURLTool struct{ http *http.Client }

func NewReadURLTool() *ReadURLTool {
	return &ReadURLTool{http: &http.Client{Timeout: urlToolTimeout}}
}

func (r *ReadURLTool) Name() string        { return "read_url" }
func (r *ReadURLTool) Tier() Tier          { return TierSubagent }
func (r *ReadURLTool) Description() string { return "Fetch a URL and return its readable text content." }

func (r *ReadURLTool) Schema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []string{"url"},
	}
}

func (r *ReadURLTool) Run(ctx context.Context, args map[string]any) (string, error) {
	target, _ := args["url"].(string)
	if strings.TrimSpace(target) == "" {
		return "error: url is required", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Sprintf("error: %s", truncate(err.Error(), 300)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Sprintf("error: status %d", resp.StatusCode), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return fmt.Sprintf("error reading body: %s", truncate(err.Error(), 300)), nil
	}

	text := stripHTML(string(body))
	if len(text) > readURLMaxChars {
		text = text[:readURLMaxChars]
	}
	return text, nil
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe         = regexp.MustCompile(`(?s)<[^>]+>`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML implements the same tag-stripping approach the source project
// uses for read_url: drop script/style blocks, strip remaining tags, and
// collapse blank lines, rather than pulling in a full HTML-to-text library.
func stripHTML(html string) string {
	s := scriptStyleRe.ReplaceAllString(html, "")
	s = tagRe.ReplaceAllString(s, "\n")
	s = blankLinesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
