// Package metrics counts pipeline outcomes. A batch run has no scrape
// endpoint, so the registry is written as a node_exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "newspulse"

// Collector records pipeline outcomes. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	feedFetches      *prometheus.CounterVec
	recordsEmitted   prometheus.Counter
	recordsFiltered  *prometheus.CounterVec
	articles         *prometheus.CounterVec
	summaries        *prometheus.CounterVec
	messages         prometheus.Counter
	scores           *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	lastStageSuccess *prometheus.GaugeVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Feed requests by result.",
		}, []string{"result"}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_emitted_total",
			Help:      "Harvested records written to output.",
		}),
		recordsFiltered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_filtered_total",
			Help:      "Harvested records dropped by reason.",
		}, []string{"reason"}),
		articles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Article extractions by result.",
		}, []string{"result"}),
		summaries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summaries by result.",
		}, []string{"result"}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_segmented_total",
			Help:      "Labelled messages produced by segmentation.",
		}),
		scores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emotion_scores_total",
			Help:      "Emotion classifications by result.",
		}, []string{"result"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Stage wall time.",
			Buckets:   []float64{0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"stage"}),
		lastStageSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful stage run.",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		c.feedFetches,
		c.recordsEmitted,
		c.recordsFiltered,
		c.articles,
		c.summaries,
		c.messages,
		c.scores,
		c.stageDuration,
		c.lastStageSuccess,
	)

	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func (c *Collector) RecordFeedFetch(ok bool) {
	if c == nil {
		return
	}
	c.feedFetches.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) RecordRecordsEmitted(n int) {
	if c == nil {
		return
	}
	c.recordsEmitted.Add(float64(n))
}

func (c *Collector) RecordRecordsFiltered(reason string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.recordsFiltered.WithLabelValues(reason).Add(float64(n))
}

func (c *Collector) RecordArticle(ok bool) {
	if c == nil {
		return
	}
	c.articles.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) RecordSummary(ok bool) {
	if c == nil {
		return
	}
	c.summaries.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) RecordMessages(n int) {
	if c == nil {
		return
	}
	c.messages.Add(float64(n))
}

func (c *Collector) RecordScore(ok bool) {
	if c == nil {
		return
	}
	c.scores.WithLabelValues(result(ok)).Inc()
}

func (c *Collector) RecordStage(stage string, duration time.Duration, ok bool) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
	if ok {
		c.lastStageSuccess.WithLabelValues(stage).SetToCurrentTime()
	}
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}
