package tools

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/m4xw311/parley/errors"
)

const (
	browseTimeout  = 15 * time.Second
	browseMaxBytes = 5 * 1024 * 1024
	browseMaxChars = 10000
	browseRetries  = 3
	retryBackoff   = 1 * time.Second
)

var browseUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// BrowseTool fetches a web page and returns its readable text content.
// Transient failures (timeouts, 429, 5xx) are retried internally with
// exponential backoff; the turn loop never retries tools itself.
type BrowseTool struct {
	client *http.Client
}

func NewBrowseTool() *BrowseTool {
	return &BrowseTool{
		client: &http.Client{Timeout: browseTimeout},
	}
}

func (t *BrowseTool) Name() string { return "browse_internet" }
func (t *BrowseTool) Description() string {
	return "Fetches a webpage and returns its readable text content, stripping navigation and markup. Retries transient failures automatically."
}
func (t *BrowseTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "The URL to browse. If the scheme is omitted, https:// is assumed.",
			},
		},
		"required": []string{"url"},
	}
}

func (t *BrowseTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	rawURL, ok := stringArg(args, "url")
	if !ok {
		return "", errors.New("missing or invalid 'url' argument")
	}

	rawURL = normalizeURL(rawURL)
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", errors.New("invalid URL '%s': could not determine the domain", rawURL)
	}

	resp, err := t.fetchWithRetries(ctx, rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "could not fetch %s", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, browseMaxBytes))
	if err != nil {
		return "", errors.Wrapf(err, "could not read response from %s", rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextContent(contentType) {
		return fmt.Sprintf("Error: the URL returned non-text content (Content-Type: %s, %d bytes). This may be a PDF, image, or binary file.", contentType, len(body)), nil
	}

	var title, content string
	if strings.Contains(strings.ToLower(contentType), "html") {
		title, content = extractHTML(string(body))
	} else {
		content = string(body)
	}
	content = strings.TrimSpace(content)
	if len(content) < 20 {
		return fmt.Sprintf("Error: could not extract meaningful text from %s. The page may rely on JavaScript to render content.", rawURL), nil
	}
	if len(content) > browseMaxChars {
		content = truncateUTF8(content, browseMaxChars) + "\n\n[content truncated]"
	}

	finalURL := resp.Request.URL.String()
	preamble := fmt.Sprintf("Content from: %s", finalURL)
	if finalURL != rawURL {
		preamble += fmt.Sprintf(" (redirected from %s)", rawURL)
	}
	if title != "" {
		preamble += fmt.Sprintf("\nTitle: %s", title)
	}
	return fmt.Sprintf("%s\n\n%s", preamble, content), nil
}

// fetchWithRetries retries on timeouts, connection errors, 429 and 5xx.
func (t *BrowseTool) fetchWithRetries(ctx context.Context, rawURL string) (*http.Response, error) {
	var lastErr error
	backoff := retryBackoff

	for attempt := 0; attempt <= browseRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff + time.Duration(rand.Int63n(int64(500*time.Millisecond)))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", browseUserAgents[attempt%len(browseUserAgents)])
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.7")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := t.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("failed after %d attempts: %w", browseRetries+1, lastErr)
}

func normalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL != "" && !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") &&
		strings.Contains(rawURL, ".") && !strings.Contains(rawURL, " ") {
		rawURL = "https://" + rawURL
	}
	return rawURL
}

func isTextContent(ct string) bool {
	ct = strings.ToLower(ct)
	for _, t := range []string{"text/html", "text/plain", "application/xhtml", "application/xml"} {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return false
}

// truncateUTF8 cuts a string to at most maxChars bytes without breaking
// a multi-byte character.
func truncateUTF8(s string, maxChars int) string {
	if len(s) <= maxChars {
		return s
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
