package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the story counters. A nil *Metrics records nothing.
type Metrics struct {
	storiesCreated *prometheus.CounterVec
	viewsRecorded  prometheus.Counter
	storiesSwept   prometheus.Counter
}

// NewMetrics creates the story counters and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		storiesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stories_created_total",
				Help: "Total number of stories created, by content type.",
			},
			[]string{"content_type"},
		),
		viewsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "story_views_recorded_total",
			Help: "Total number of first-time story views recorded.",
		}),
		storiesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stories_swept_total",
			Help: "Total number of expired stories removed by the sweeper.",
		}),
	}

	for _, c := range []prometheus.Collector{m.storiesCreated, m.viewsRecorded, m.storiesSwept} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) storyCreated(contentType string) {
	if m != nil {
		m.storiesCreated.WithLabelValues(contentType).Inc()
	}
}

func (m *Metrics) viewRecorded() {
	if m != nil {
		m.viewsRecorded.Inc()
	}
}

func (m *Metrics) swept(n int) {
	if m != nil && n > 0 {
		m.storiesSwept.Add(float64(n))
	}
}
