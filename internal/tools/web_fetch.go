package tools

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultFetchMaxChars   = 50_000
	fetchMaxRedirects      = 3
	fetchTimeout           = 30 * time.Second
	fetchUserAgent         = "loomgate-agent/1.0 (+https://example.invalid/agent)"
)

// WebFetchTool fetches a URL and extracts its content as markdown or text,
// with SSRF protection against internal/loopback/link-local addresses.
// Grounded on the teacher's web_fetch.go (content-type dispatch, redirect
// cap, truncation, response envelope), without its cache and without the
// wrapExternalContent/checkSSRF helpers that file referenced but did not
// define in the retrieved source — those are reimplemented here instead.
type WebFetchTool struct {
	maxChars int
	client   *http.Client
}

// NewWebFetchTool builds a WebFetchTool with spec defaults.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		maxChars: defaultFetchMaxChars,
		client: &http.Client{
			Timeout: fetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > fetchMaxRedirects {
					return fmt.Errorf("stopped after %d redirects", fetchMaxRedirects)
				}
				if err := checkSSRF(req.URL); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }
func (t *WebFetchTool) Description() string {
	return "Fetch a URL and extract its content as markdown or text. Blocks requests to private/internal addresses."
}

func (t *WebFetchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "HTTP or HTTPS URL to fetch.",
			},
			"extract_mode": map[string]any{
				"type":        "string",
				"description": `Extraction mode for HTML content. Default "markdown".`,
				"enum":        []string{"markdown", "text"},
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]any) (string, bool) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return "url is required", true
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Sprintf("invalid url: %v", err), true
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "only http and https urls are supported", true
	}
	if err := checkSSRF(parsed); err != nil {
		return fmt.Sprintf("blocked: %v", err), true
	}

	extractMode := "markdown"
	if em, ok := args["extract_mode"].(string); ok && (em == "markdown" || em == "text") {
		extractMode = em
	}

	text, status, extractor, err := t.fetch(ctx, rawURL, extractMode)
	if err != nil {
		return fmt.Sprintf("fetch failed: %v", err), true
	}

	truncated := false
	if len(text) > t.maxChars {
		text = text[:t.maxChars]
		truncated = true
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "URL: %s\nStatus: %d\nExtractor: %s\n", rawURL, status, extractor)
	if truncated {
		fmt.Fprintf(&sb, "Truncated: true (limit: %d chars)\n", t.maxChars)
	}
	sb.WriteString("\n")
	sb.WriteString(text)
	return sb.String(), false
}

func (t *WebFetchTool) fetch(ctx context.Context, rawURL, extractMode string) (text string, status int, extractor string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", 0, "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(t.maxChars*4)))
	if err != nil {
		return "", 0, "", fmt.Errorf("read body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		text, extractor = extractJSON(body)
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		if extractMode == "markdown" {
			text, extractor = htmlToMarkdown(string(body)), "html-to-markdown"
		} else {
			text, extractor = htmlToText(string(body)), "html-to-text"
		}
	default:
		text, extractor = string(body), "raw"
	}

	return text, resp.StatusCode, extractor, nil
}

// checkSSRF rejects requests aimed at loopback, link-local, and private
// address ranges, the basic SSRF guard the teacher's web_fetch.go names
// (checkSSRF) without including its body in the retrieved source.
func checkSSRF(u *url.URL) error {
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("missing hostname")
	}

	ips, err := net.LookupIP(host)
	if err != nil {
		// Unresolvable host: let the HTTP client surface the DNS error.
		return nil
	}
	for _, ip := range ips {
		if isBlockedIP(ip) {
			return fmt.Errorf("address %s resolves to a blocked range", host)
		}
	}
	return nil
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() || ip.IsUnspecified()
}
