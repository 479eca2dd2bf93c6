package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rewardbot"

// Reward outcome label values.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
	OutcomeDryRun = "dry_run"
)

type Metrics struct {
	Messages       prometheus.Counter
	ParseErrors    prometheus.Counter
	TransferLines  prometheus.Counter
	Detections     prometheus.Counter
	Rewards        *prometheus.CounterVec
	RewardDuration prometheus.Histogram
}

// New creates the bot's collectors and registers them with reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Total number of frames read from the log stream",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Total number of frames that could not be parsed",
		}),
		TransferLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfer_lines_total",
			Help:      "Total number of transfer log lines seen",
		}),
		Detections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detections_total",
			Help:      "Total number of large transfers detected",
		}),
		Rewards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewards_total",
			Help:      "Reward transactions by outcome",
		}, []string{"outcome"}),
		RewardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reward_duration_seconds",
			Help:      "Time from detection to reward confirmation or failure",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Messages, m.ParseErrors, m.TransferLines, m.Detections, m.Rewards, m.RewardDuration)
	}
	return m
}

func (m *Metrics) ObserveReward(outcome string, took time.Duration) {
	m.Rewards.WithLabelValues(outcome).Inc()
	m.RewardDuration.Observe(took.Seconds())
}

// Serve exposes /metrics for gatherer on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
