package feed

import (
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"
)

const customSourceKey = "source"

// sourceTranslator keeps the RSS <source> element, which the default
// translator drops, in Item.Custom.
type sourceTranslator struct {
	gofeed.DefaultRSSTranslator
}

func (t *sourceTranslator) Translate(feed any) (*gofeed.Feed, error) {
	result, err := t.DefaultRSSTranslator.Translate(feed)
	if err != nil {
		return nil, err
	}

	rssFeed, ok := feed.(*rss.Feed)
	if !ok || len(rssFeed.Items) != len(result.Items) {
		return result, nil
	}

	for i, item := range rssFeed.Items {
		if item == nil || item.Source == nil {
			continue
		}

		title := strings.TrimSpace(item.Source.Title)
		if title == "" {
			continue
		}

		if result.Items[i].Custom == nil {
			result.Items[i].Custom = make(map[string]string)
		}
		result.Items[i].Custom[customSourceKey] = title
	}

	return result, nil
}

func newLibParser(userAgent string) *gofeed.Parser {
	p := gofeed.NewParser()
	p.RSSTranslator = &sourceTranslator{}
	p.UserAgent = userAgent

	return p
}
