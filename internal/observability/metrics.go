package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain collectors. HTTP-level collectors live in the middleware package.
var (
	// IndexRecomputes counts index updates by what triggered them
	// (activity, water, sleep, mood, pose, face_scan, onboarding).
	IndexRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wellness_index_updates_total",
			Help: "Happiness/Health index updates by trigger.",
		},
		[]string{"trigger"},
	)

	// ClassifierCalls counts face classifier passes by outcome
	// (ok, rate_limited, unavailable, error).
	ClassifierCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facescan_classifier_calls_total",
			Help: "Face classifier calls by outcome.",
		},
		[]string{"outcome"},
	)

	// ChatFragments counts content fragments assembled from chat streams.
	ChatFragments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_stream_fragments_total",
			Help: "Assistant content fragments received from the chat gateway.",
		},
	)

	// UpstreamFailures counts failed upstream exchanges by service and reason.
	UpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_failures_total",
			Help: "Failed calls to the chat gateway and classifier.",
		},
		[]string{"service", "reason"},
	)
)

func init() {
	prometheus.MustRegister(IndexRecomputes, ClassifierCalls, ChatFragments, UpstreamFailures)
}
