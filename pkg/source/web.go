package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/DecisionNerd/infoextract-cidoc/pkg/logger"

	"codeberg.org/readeck/go-readability/v2"
)

// maxBodyBytes caps a fetched page.
const maxBodyBytes = 10 << 20

// WebLoader fetches web pages and keeps the readable article text. Non-HTML
// responses are returned as-is.
type WebLoader struct {
	client *http.Client
	cache  *cache
}

// NewWebLoader creates a loader using client, or a client with a 30 second
// timeout when nil.
func NewWebLoader(client *http.Client) *WebLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebLoader{client: client, cache: newCache()}
}

// Load fetches rawURL and returns its readable text.
func (l *WebLoader) Load(ctx context.Context, rawURL string) (string, error) {
	return l.cache.get(rawURL, func() (string, error) {
		return l.fetch(ctx, rawURL)
	})
}

func (l *WebLoader) fetch(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "infoextract-cidoc/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("failed to fetch url: %s returned %s", rawURL, resp.Status)
	}

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if !strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		data, err := io.ReadAll(body)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	article, err := readability.FromReader(body, pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}

	logger.Debug("[Source] Fetched web page", "url", rawURL, "chars", builder.Len())
	return builder.String(), nil
}
