package feed

import (
	"net/url"
	"strings"
	"time"

	"newspulse/internal/domain"

	"github.com/mmcdole/gofeed"
)

const redirectTargetParam = "url"

// ParseEntry never fails: missing fields fall back to "" for the title and
// link and to domain.UnknownSource for the source.
func ParseEntry(item *gofeed.Item) domain.FeedEntry {
	if item == nil {
		return domain.FeedEntry{SourceName: domain.UnknownSource}
	}

	sourceName := strings.TrimSpace(item.Custom[customSourceKey])
	if sourceName == "" {
		sourceName = domain.UnknownSource
	}

	published, _ := ResolvePublishedDate(item)

	return domain.FeedEntry{
		Title:       strings.TrimSpace(item.Title),
		RawLink:     strings.TrimSpace(item.Link),
		SourceName:  sourceName,
		PublishedAt: published,
	}
}

// ExtractRealURL returns the redirect target carried in the link's "url"
// query parameter, or the link itself. It does no network access.
//
// The raw query is split on "&" only, so targets containing ";" or a
// malformed escape survive; net/url's query parser drops both.
func ExtractRealURL(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return link
	}

	for pair := range strings.SplitSeq(u.RawQuery, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if unescapeQuery(key) != redirectTargetParam {
			continue
		}

		if value = unescapeQuery(value); value != "" {
			return value
		}
	}

	return link
}

// unescapeQuery decodes "+" and valid %XX escapes. Malformed escapes are
// kept as they are.
func unescapeQuery(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	default:
		return c - '0'
	}
}

// ResolvePublishedDate prefers the published date over the updated one.
// ok is false when the item carries neither.
func ResolvePublishedDate(item *gofeed.Item) (time.Time, bool) {
	if item == nil {
		return time.Time{}, false
	}

	if item.PublishedParsed != nil && !item.PublishedParsed.IsZero() {
		return item.PublishedParsed.UTC(), true
	}

	if item.UpdatedParsed != nil && !item.UpdatedParsed.IsZero() {
		return item.UpdatedParsed.UTC(), true
	}

	return time.Time{}, false
}

func Resolve(entry domain.FeedEntry) domain.ResolvedRecord {
	return domain.ResolvedRecord{
		FeedEntry:   entry,
		ResolvedURL: ExtractRealURL(entry.RawLink),
	}
}
