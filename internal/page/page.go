// Package page turns a URL into readable text so it can be used as a source.
package page

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
	"mvdan.cc/xurls/v2"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"

	clientTimeout = 20 * time.Second
	maxBodyBytes  = 5 << 20
	maxFeedItems  = 20

	noiseSelector   = "script, style, noscript, template, iframe, svg, canvas, nav, header, footer, aside, form"
	blockSelector   = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, figcaption, dt, dd"
	maxPageTextSize = 200_000
)

var (
	ErrNoText = errors.New("no readable text")

	//nolint:gochecknoglobals // ordered from most to least specific
	rootSelectors = []string{"article", "main", "body"}
)

type Fetcher struct {
	httpClient *http.Client
	feedParser *gofeed.Parser
	log        *slog.Logger
}

func NewFetcher(httpClient *http.Client, log *slog.Logger) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: clientTimeout}
	}

	return &Fetcher{
		httpClient: httpClient,
		feedParser: gofeed.NewParser(),
		log:        log,
	}
}

// FindURLs returns the distinct https URLs found in text, in order of appearance.
func FindURLs(text string) []string {
	re, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]struct{})

	for _, u := range re.FindAllString(text, -1) {
		u = strings.TrimSpace(u)
		if _, ok := seen[u]; ok {
			continue
		}

		urls = append(urls, u)
		seen[u] = struct{}{}
	}

	return urls
}

// SourceURL reports whether text is nothing but a single https URL.
func SourceURL(text string) (string, bool) {
	text = strings.TrimSpace(text)

	urls := FindURLs(text)
	if len(urls) != 1 || urls[0] != text {
		return "", false
	}

	return text, true
}

// FetchText downloads rawURL and extracts its readable text. HTML pages keep
// the text of their main content, feeds become their title followed by items.
func (f *Fetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, contentType, err := f.fetch(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}

	var text string

	switch {
	case strings.Contains(contentType, "html"):
		text, err = htmlText(body, contentType)
	case strings.Contains(contentType, "text/plain"):
		text = strings.TrimSpace(string(body))
	default:
		text, err = f.feedText(body)
	}
	if err != nil {
		return "", fmt.Errorf("extract text (URL = %s): %w", rawURL, err)
	}

	if text == "" {
		return "", ErrNoText
	}

	if r := []rune(text); len(r) > maxPageTextSize {
		f.log.WarnContext(ctx, "Page text is truncated",
			"url", rawURL,
			"textLength", len(r),
			"maxLength", maxPageTextSize)

		text = string(r[:maxPageTextSize])
	}

	return text, nil
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/atom+xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			f.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", rawURL)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	return body, strings.ToLower(resp.Header.Get("Content-Type")), nil
}

func htmlText(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		r = bytes.NewReader(body)
	}

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	doc.Find(noiseSelector).Remove()

	for _, root := range rootSelectors {
		if text := selectionText(doc.Find(root).First()); text != "" {
			return text, nil
		}
	}

	return "", nil
}

func selectionText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}

	var lines []string

	sel.Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsFiltered(blockSelector).Length() > 0 {
			return
		}

		if line := collapseSpaces(s.Text()); line != "" {
			lines = append(lines, line)
		}
	})

	if len(lines) == 0 {
		return collapseSpaces(sel.Text())
	}

	return strings.Join(lines, "\n")
}

func (f *Fetcher) feedText(body []byte) (string, error) {
	parsed, err := f.feedParser.Parse(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse feed: %w", err)
	}

	var sb strings.Builder

	if title := strings.TrimSpace(parsed.Title); title != "" {
		sb.WriteString(title)
		sb.WriteString("\n\n")
	}

	for i, item := range parsed.Items {
		if i == maxFeedItems {
			break
		}

		title := collapseSpaces(item.Title)
		content := item.Content
		if strings.TrimSpace(content) == "" {
			content = item.Description
		}
		content = markupText(content)

		if title == "" && content == "" {
			continue
		}

		sb.WriteString("- ")
		sb.WriteString(title)
		if content != "" {
			if title != "" {
				sb.WriteString(": ")
			}
			sb.WriteString(content)
		}
		sb.WriteString("\n")
	}

	return strings.TrimSpace(sb.String()), nil
}

func markupText(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpaces(s)
	}

	return collapseSpaces(doc.Text())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
