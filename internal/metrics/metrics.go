// Package metrics exposes Prometheus counters for the action scheduler
// and an HTTP server to scrape them.
package metrics

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chanops"

var (
	// Registry is the Prometheus registry used by this package
	Registry = prometheus.NewRegistry()

	// ActionsSubmitted counts queued actions by operation
	ActionsSubmitted = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_submitted_total",
			Help:      "Actions queued, by operation",
		},
		[]string{"op"},
	)

	// ActionsFinished counts actions leaving the queue by final state
	ActionsFinished = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_finished_total",
			Help:      "Actions that left the queue, by operation and final state",
		},
		[]string{"op", "state"},
	)

	// CommandsSent counts moderation commands executed
	CommandsSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_sent_total",
			Help:      "Moderation commands sent, by IRC command",
		},
		[]string{"command"},
	)

	// RequestsSent counts queries and service requests made on behalf of actions
	RequestsSent = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Information and privilege requests sent, by kind",
		},
		[]string{"kind"},
	)

	// PendingActions is the current queue length
	PendingActions = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_actions",
			Help:      "Actions currently queued",
		},
	)
)

// Handler serves the registry in the Prometheus exposition format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Serve runs a metrics server on addr until ctx is cancelled
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down metrics server: %v", err)
		}
	}()

	log.Printf("Serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
