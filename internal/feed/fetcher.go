package feed

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"newspulse/internal/domain"

	"github.com/mmcdole/gofeed"
)

const (
	DefaultBaseURL  = "https://news.google.com/rss/search"
	DefaultLanguage = "en-US"
	DefaultRegion   = "US"
	DefaultEdition  = "US:en"
	DefaultTimeout  = 10 * time.Second

	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0_0) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.6723.70 Safari/537.36"
)

type Options struct {
	BaseURL   string
	Language  string
	Region    string
	Edition   string
	UserAgent string
	Timeout   time.Duration
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = DefaultBaseURL
	}
	if o.Language == "" {
		o.Language = DefaultLanguage
	}
	if o.Region == "" {
		o.Region = DefaultRegion
	}
	if o.Edition == "" {
		o.Edition = DefaultEdition
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}

	return o
}

// Harvester turns a search query into resolved feed records.
type Harvester struct {
	opts      Options
	client    *http.Client
	libParser *gofeed.Parser
	log       *slog.Logger
}

// NewHarvester uses client when given, otherwise a client bounded by
// opts.Timeout.
func NewHarvester(client *http.Client, opts Options, log *slog.Logger) *Harvester {
	opts = opts.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &Harvester{
		opts:      opts,
		client:    client,
		libParser: newLibParser(opts.UserAgent),
		log:       log,
	}
}

// SearchURL builds the feed request URL for query.
func (h *Harvester) SearchURL(query string) (string, error) {
	u, err := url.Parse(h.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}

	q := u.Query()
	q.Set("q", query)
	q.Set("hl", h.opts.Language)
	q.Set("gl", h.opts.Region)
	q.Set("ceid", h.opts.Edition)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// FetchFeed requests the search feed for query. Request failures are
// returned as *TransportError; an empty feed is not an error.
func (h *Harvester) FetchFeed(ctx context.Context, query string) (iter.Seq[*gofeed.Item], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search terms are empty", ErrInvalidInput)
	}

	feedURL, err := h.SearchURL(query)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", h.opts.UserAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: feedURL, Err: err}
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			h.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"feedURL", feedURL,
				"operation", "FetchFeed")
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &TransportError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	parsed, err := h.libParser.Parse(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{URL: feedURL, Err: err}
		}

		return nil, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	h.log.InfoContext(ctx, "Feed is fetched",
		"feedURL", feedURL,
		"itemCount", len(parsed.Items))

	return slices.Values(parsed.Items), nil
}

// Stats counts what Harvest saw and dropped.
type Stats struct {
	Items      int
	OutOfRange int
	Duplicates int
	Undated    int
}

// Harvest fetches the feed for query and keeps, in feed order, records whose
// date falls inside window. Records without a date are kept. Repeated
// resolved URLs are dropped after their first occurrence.
func (h *Harvester) Harvest(
	ctx context.Context,
	query string,
	window domain.DateRange,
) ([]domain.ResolvedRecord, Stats, error) {
	if !window.Valid() {
		return nil, Stats{}, fmt.Errorf("%w: start %s is after end %s",
			ErrInvalidInput,
			window.Start.Format(time.RFC3339),
			window.End.Format(time.RFC3339))
	}

	items, err := h.FetchFeed(ctx, query)
	if err != nil {
		return nil, Stats{}, err
	}

	var (
		records []domain.ResolvedRecord
		stats   Stats
		seen    = make(map[string]struct{})
	)

	for item := range items {
		stats.Items++
		record := Resolve(ParseEntry(item))

		if record.HasDate() {
			if !window.Contains(record.PublishedAt) {
				stats.OutOfRange++
				continue
			}
		} else {
			stats.Undated++
		}

		if record.ResolvedURL != "" {
			if _, ok := seen[record.ResolvedURL]; ok {
				stats.Duplicates++
				continue
			}
			seen[record.ResolvedURL] = struct{}{}
		}

		records = append(records, record)
	}

	h.log.InfoContext(ctx, "Feed is harvested",
		"query", query,
		"itemCount", stats.Items,
		"recordCount", len(records),
		"outOfRangeCount", stats.OutOfRange,
		"duplicateCount", stats.Duplicates,
		"undatedCount", stats.Undated)

	return records, stats, nil
}
