// Package metrics exposes Prometheus collectors for the tracking protocol.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/1ureka/circletrack/internal/util"
)

const namespace = "circletrack"

// Registry holds every collector of this process.
var Registry = prometheus.NewRegistry()

var (
	// TrackingError is the Euclidean distance between a reported coordinate
	// and the ground truth it was paired with.
	TrackingError = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "tracking_error_pixels",
		Help:      "Distance between reported and ground-truth circle coordinates.",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100, 200, 500},
	})

	// Messages counts chat messages by direction and kind.
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Chat channel messages by direction (sent, received) and kind.",
	}, []string{"direction", "kind"})

	// ProtocolViolations counts inbound text that was not a protocol message.
	ProtocolViolations = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "protocol_violations_total",
		Help:      "Inbound chat messages ignored as malformed.",
	})

	// DetectionFallbacks counts replies that fell back to pong because no
	// detection result was ready in time.
	DetectionFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detection_fallbacks_total",
		Help:      "Replies sent as pong because no detection result was ready.",
	})

	// FramesSkipped counts frames not submitted because every detection worker was busy.
	FramesSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_skipped_total",
		Help:      "Decoded frames skipped while the detection pool was saturated.",
	})

	// SessionState is 1 for the current signaling state of the session, 0 otherwise.
	SessionState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "session_state",
		Help:      "Current signaling state (1 = active).",
	}, []string{"state"})
)

func init() {
	Registry.MustRegister(
		TrackingError,
		Messages,
		ProtocolViolations,
		DetectionFallbacks,
		FramesSkipped,
		SessionState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Serve exposes Registry on addr at /metrics until ctx is cancelled. It
// returns once the listener is bound, serving in the background.
func Serve(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogWarning("metrics server stopped: %v", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	util.LogInfo("metrics available at http://%s/metrics", listener.Addr())
	return nil
}
