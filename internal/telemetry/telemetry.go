// Package telemetry exposes the Prometheus instruments shared by the
// pipeline stages. Metrics land on the default registry and are served at
// /metrics by the HTTP server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LLMRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editorial_llm_requests_total",
		Help: "LLM completions by operation and outcome.",
	}, []string{"operation", "outcome"})

	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editorial_search_requests_total",
		Help: "Search calls by source lane and outcome.",
	}, []string{"source", "outcome"})

	NodesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editorial_nodes_finished_total",
		Help: "Outline nodes finished by stage and status.",
	}, []string{"stage", "status"})

	RetrievalIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "editorial_retrieval_iterations",
		Help:    "Retrieval loop iterations per leaf node.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)
