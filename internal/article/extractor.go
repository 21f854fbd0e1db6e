package article

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/doyensec/safeurl"
	"github.com/microcosm-cc/bluemonday"
	"mvdan.cc/xurls/v2"
)

const (
	DefaultMaxChars = 5000
	DefaultTimeout  = 20 * time.Second
	DefaultMaxBytes = 5 << 20

	FailurePrefix = "Failed to extract: "

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/127.0.0.0 Safari/537.36"
)

var (
	// Paragraph containers, most specific first.
	paragraphSelectors = []string{
		"article p",
		"main p",
		"[itemprop='articleBody'] p",
		"p",
	}

	linkRe = xurls.Relaxed()
)

type Extractor struct {
	client   *http.Client
	policy   *bluemonday.Policy
	maxChars int
	maxBytes int64
	log      *slog.Logger
}

func NewExtractor(client *http.Client, maxChars int, log *slog.Logger) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	return &Extractor{
		client:   client,
		policy:   bluemonday.StrictPolicy(),
		maxChars: maxChars,
		maxBytes: DefaultMaxBytes,
		log:      log,
	}
}

// NewSafeClient returns a client that refuses private, loopback and
// link-local destinations, including after DNS resolution.
func NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// Extract downloads the page at pageURL and returns its paragraph text,
// capped to the configured number of characters.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if pageURL == "" {
		return "", errors.New("URL is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := e.client.Do(req) //nolint:gosec // URLs come from the harvested feed
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			e.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"url", pageURL,
				"operation", "Extract")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("do request: unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, e.maxBytes))
	if err != nil {
		return "", fmt.Errorf("create document from reader: %w", err)
	}

	text := e.documentText(doc)
	if text == "" {
		return "", errors.New("no article text found")
	}

	return truncate(text, e.maxChars), nil
}

func (e *Extractor) documentText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside, form").Remove()

	for _, selector := range paragraphSelectors {
		var paragraphs []string

		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if p := e.paragraphText(s); p != "" {
				paragraphs = append(paragraphs, p)
			}
		})

		if len(paragraphs) > 0 {
			return strings.Join(paragraphs, "\n\n")
		}
	}

	return ""
}

func (e *Extractor) paragraphText(s *goquery.Selection) string {
	s.Find("br").Each(func(_ int, br *goquery.Selection) {
		br.ReplaceWithHtml("\n")
	})

	raw, err := s.Html()
	if err != nil {
		return ""
	}

	text := html.UnescapeString(e.policy.Sanitize(raw))

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	text = strings.TrimSpace(strings.Join(lines, "\n"))

	if isLinkOnly(text) {
		return ""
	}

	return text
}

// isLinkOnly reports whether text holds nothing but URLs and punctuation,
// as share bars and "read more" stubs do.
func isLinkOnly(text string) bool {
	if text == "" {
		return true
	}

	if !linkRe.MatchString(text) {
		return false
	}

	rest := linkRe.ReplaceAllString(text, "")

	return strings.Trim(rest, " \n\t:|-–—•·,.()[]") == ""
}

func truncate(text string, maxChars int) string {
	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}

	return strings.TrimSpace(string(runes[:maxChars]))
}

// FailureText is the cell written in place of article text when
// extraction fails.
func FailureText(err error) string {
	return FailurePrefix + err.Error()
}
