package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation flow
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_player_recommendations_total",
			Help: "Total number of photo recommendations by outcome",
		},
		[]string{"outcome"}, // "cache_hit", "downloaded", or an error kind
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mood_player_recommendation_duration_seconds",
			Help:    "End-to-end duration of a recommendation",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	EmotionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_player_emotions_total",
			Help: "Total number of classified photos by dominant emotion",
		},
		[]string{"emotion"},
	)

	// Downloads
	DownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_player_downloads_total",
			Help: "Total number of audio downloads by result",
		},
		[]string{"result"}, // "success", "failed", "timeout", "invalid", "unavailable"
	)

	DownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mood_player_download_duration_seconds",
			Help:    "Duration of audio downloads including validation",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mood_player_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mood_player_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func RecordRecommendation(outcome string, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(outcome).Inc()
	RecommendationDuration.Observe(duration.Seconds())
}

func RecordEmotion(emotion string) {
	EmotionsTotal.WithLabelValues(emotion).Inc()
}

func RecordDownload(result string, duration time.Duration) {
	DownloadsTotal.WithLabelValues(result).Inc()
	DownloadDuration.Observe(duration.Seconds())
}

// RecordAPIRequest records an HTTP request. route is the chi route pattern, not the raw path.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
