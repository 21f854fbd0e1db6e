package domain

import "time"

const (
	UnknownSource = "Unknown"
	UnknownDate   = "unknown"

	dateLayout = "2006-01-02"
)

type FeedEntry struct {
	Title      string
	RawLink    string
	SourceName string
	// PublishedAt is zero when the feed item carries no usable date.
	PublishedAt time.Time
}

func (e FeedEntry) HasDate() bool {
	return !e.PublishedAt.IsZero()
}

// DateFound formats PublishedAt as YYYY-MM-DD or returns UnknownDate.
func (e FeedEntry) DateFound() string {
	if !e.HasDate() {
		return UnknownDate
	}

	return e.PublishedAt.Format(dateLayout)
}

type ResolvedRecord struct {
	FeedEntry

	ResolvedURL string
}

type DateRange struct {
	Start time.Time
	End   time.Time
}

func (r DateRange) Valid() bool {
	return !r.Start.After(r.End)
}

// Contains reports whether t falls inside the range, both ends inclusive.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

type LabeledMessage struct {
	Label string
	Body  string
}

type Run struct {
	ID         string
	Stage      string
	Input      string
	Output     string
	RowsIn     int64
	RowsOut    int64
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusFailed  = "failed"
)
