package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"
)

const (
	MaxTitlesPerFeed = 15
	MinTitleLength   = 4

	maxFeedBytes = 4 << 20
)

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&#39;", "'",
	"&quot;", `"`,
)

// ExtractTitles pulls item titles out of raw feed text in document order.
// It is a linear scan over <item> blocks rather than an XML parser; text
// without any <item> is handed to gofeed so Atom-shaped feeds still yield
// titles. It never fails: anything unusable produces an empty slice.
func ExtractTitles(text string) []string {
	titles := make([]string, 0, MaxTitlesPerFeed)
	if strings.TrimSpace(text) == "" {
		return titles
	}
	if !strings.Contains(text, "<item") {
		return extractWithParser(text)
	}

	parts := splitItems(text)
	for _, part := range parts {
		if len(titles) >= MaxTitlesPerFeed {
			break
		}
		start := strings.Index(part, "<title>")
		end := strings.Index(part, "</title>")
		if start < 0 || end <= start {
			continue
		}
		if t, ok := cleanTitle(part[start+len("<title>") : end]); ok {
			titles = append(titles, t)
		}
	}
	return titles
}

// splitItems returns the text following each opening <item> tag, accepting
// tags that carry attributes.
func splitItems(text string) []string {
	var parts []string
	rest := text
	for {
		i := strings.Index(rest, "<item")
		if i < 0 {
			return parts
		}
		rest = rest[i+len("<item"):]
		if rest == "" {
			return parts
		}
		// skip <items>, <itemCount> and friends
		if c := rest[0]; c != '>' && c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			continue
		}
		closeTag := strings.IndexByte(rest, '>')
		if closeTag < 0 {
			return parts
		}
		body := rest[closeTag+1:]
		if next := strings.Index(body, "<item"); next >= 0 {
			parts = append(parts, body[:next])
		} else {
			parts = append(parts, body)
		}
	}
}

func cleanTitle(raw string) (string, bool) {
	t := strings.ReplaceAll(raw, "<![CDATA[", "")
	t = strings.ReplaceAll(t, "]]>", "")
	t = entityReplacer.Replace(t)
	t = strings.TrimSpace(t)
	if utf8.RuneCountInString(t) < MinTitleLength {
		return "", false
	}
	return t, true
}

func extractWithParser(text string) (titles []string) {
	titles = make([]string, 0, MaxTitlesPerFeed)
	defer func() {
		if r := recover(); r != nil {
			titles = titles[:0]
		}
	}()
	feed, err := gofeed.NewParser().ParseString(text)
	if err != nil || feed == nil {
		return titles
	}
	for _, item := range feed.Items {
		if len(titles) >= MaxTitlesPerFeed {
			break
		}
		if item == nil {
			continue
		}
		if t, ok := cleanTitle(item.Title); ok {
			titles = append(titles, t)
		}
	}
	return titles
}

// Fetcher downloads feed text over HTTP. A feed that cannot be read
// contributes no titles.
type Fetcher struct {
	client *http.Client
	logger *log.Logger
	sf     singleflight.Group
}

func NewFetcher(timeout time.Duration, logger *log.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// NewFetcherWithClient is used when the caller owns the transport.
func NewFetcherWithClient(client *http.Client, logger *log.Logger) *Fetcher {
	f := NewFetcher(0, logger)
	if client != nil {
		f.client = client
	}
	return f
}

// FetchText returns the body of the feed at url.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build feed request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "kahaani/1.0 (+rss)")
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("feed %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read feed %s: %w", url, err)
	}
	return string(body), nil
}

// FetchTitles fetches and extracts titles. The returned slice is always
// usable: on error it is empty and the error is only informational.
// Concurrent calls for the same url share one download.
func (f *Fetcher) FetchTitles(ctx context.Context, url string) ([]string, error) {
	ch := f.sf.DoChan(url, func() (interface{}, error) {
		// Detached so one caller giving up does not fail the others; the
		// client timeout still bounds the download.
		return f.FetchText(context.WithoutCancel(ctx), url)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return []string{}, ctx.Err()
	}
	if res.Err != nil {
		f.logger.Warn("feed unavailable, continuing without it", "url", url, "error", res.Err)
		return []string{}, res.Err
	}

	titles := ExtractTitles(res.Val.(string))
	f.logger.Debug("feed parsed", "url", url, "titles", len(titles), "shared", res.Shared)
	return titles, nil
}
