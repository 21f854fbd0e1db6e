package summarizer

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	DefaultCacheMaxEntries = 1024
	DefaultCacheTTL        = 24 * time.Hour
)

// cached is one remembered summary. Elements of CachingSummarizer.recent hold
// *cached, most recently used at the front.
type cached struct {
	key      string
	summary  string
	storedAt time.Time
}

// CachingSummarizer serves repeated article texts, common when outlets
// syndicate the same wire story, from memory. Texts are matched after
// whitespace normalization; failed calls are not remembered.
type CachingSummarizer struct {
	next       Summarizer
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu     sync.Mutex
	byKey  map[string]*list.Element
	recent *list.List
}

// NewCachingSummarizer wraps next. A non-positive maxEntries disables the
// cache; a non-positive ttl uses DefaultCacheTTL.
func NewCachingSummarizer(next Summarizer, maxEntries int, ttl time.Duration) *CachingSummarizer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &CachingSummarizer{
		next:       next,
		ttl:        ttl,
		maxEntries: max(maxEntries, 0),
		now:        time.Now,
		byKey:      make(map[string]*list.Element),
		recent:     list.New(),
	}
}

func (s *CachingSummarizer) Summarize(ctx context.Context, input Input) (string, error) {
	key := textKey(input.Text)

	if summary, ok := s.lookup(key); ok {
		return summary, nil
	}

	summary, err := s.next.Summarize(ctx, input)
	if err != nil {
		return "", err
	}

	s.store(key, summary)

	return summary, nil
}

// Len reports how many summaries are held, expired ones included until
// they are touched or pushed out.
func (s *CachingSummarizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.recent.Len()
}

func (s *CachingSummarizer) lookup(key string) (string, bool) {
	if key == "" || s.maxEntries == 0 {
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.byKey[key]
	if !ok {
		return "", false
	}

	entry := elem.Value.(*cached)
	if s.expired(entry) {
		s.drop(elem)
		return "", false
	}

	s.recent.MoveToFront(elem)

	return entry.summary, true
}

func (s *CachingSummarizer) store(key string, summary string) {
	if key == "" || summary == "" || s.maxEntries == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.byKey[key]; ok {
		entry := elem.Value.(*cached)
		entry.summary = summary
		entry.storedAt = s.now()
		s.recent.MoveToFront(elem)

		return
	}

	s.byKey[key] = s.recent.PushFront(&cached{key: key, summary: summary, storedAt: s.now()})

	// The back of the list is the least recently used entry; expired ones
	// go first, then whatever exceeds the size limit.
	for back := s.recent.Back(); back != nil; back = s.recent.Back() {
		if s.recent.Len() <= s.maxEntries && !s.expired(back.Value.(*cached)) {
			break
		}
		s.drop(back)
	}
}

func (s *CachingSummarizer) expired(entry *cached) bool {
	return s.now().Sub(entry.storedAt) > s.ttl
}

func (s *CachingSummarizer) drop(elem *list.Element) {
	delete(s.byKey, elem.Value.(*cached).key)
	s.recent.Remove(elem)
}

// textKey hashes text with runs of whitespace collapsed, so re-wrapped copies
// of one article share a key. Blank text has no key.
func textKey(text string) string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return ""
	}

	sum := sha256.Sum256([]byte(normalized))

	return hex.EncodeToString(sum[:])
}
