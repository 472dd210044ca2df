package core

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"accessionreport/pkg/datasetapi"
)

// Run outcomes reported to MetricsRecorder.
const (
	RunStatusSuccess = "success"
	RunStatusInvalid = "invalid"
	RunStatusError   = "error"
)

// MetricsRecorder observes dataset template runs.
type MetricsRecorder interface {
	ObserveRun(ctx context.Context, template, status string, duration time.Duration, rows int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRun(context.Context, string, string, time.Duration, int) {}

// PrometheusMetricsRecorder exports run counters and latencies.
type PrometheusMetricsRecorder struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	rows     *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder creates the report run collectors and
// registers them with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessionreport",
			Name:      "report_runs_total",
			Help:      "Report runs by template and outcome.",
		}, []string{"template", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "accessionreport",
			Name:      "report_run_duration_seconds",
			Help:      "Report run latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"template"}),
		rows: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "accessionreport",
			Name:      "report_rows_returned",
			Help:      "Rows returned by successful report runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"template"}),
	}
	for _, c := range []prometheus.Collector{r.runs, r.duration, r.rows} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *PrometheusMetricsRecorder) ObserveRun(_ context.Context, template, status string, duration time.Duration, rows int) {
	r.runs.WithLabelValues(template, status).Inc()
	r.duration.WithLabelValues(template).Observe(duration.Seconds())
	if status == RunStatusSuccess {
		r.rows.WithLabelValues(template).Observe(float64(rows))
	}
}

// instrument logs and measures every run of the template identified by slug.
func (s *Service) instrument(slug string) func(datasetapi.Runner) datasetapi.Runner {
	return func(next datasetapi.Runner) datasetapi.Runner {
		return func(ctx context.Context, req datasetapi.RunRequest) (datasetapi.RunResult, error) {
			started := s.now()
			result, err := next(ctx, req)
			elapsed := s.now().Sub(started)

			fields := []zap.Field{
				zap.String("template", slug),
				zap.Int64("repo_id", req.Scope.RepoID),
				zap.Duration("duration", elapsed),
			}
			status := RunStatusSuccess
			var perr datasetapi.ParameterErrorer
			switch {
			case err == nil:
				fields = append(fields, zap.Int("rows", len(result.Rows)))
				s.logger.Info("report run", fields...)
			case errors.As(err, &perr):
				status = RunStatusInvalid
				s.logger.Info("report parameters rejected", append(fields, zap.Error(err))...)
			default:
				status = RunStatusError
				s.logger.Error("report run failed", append(fields, zap.Error(err))...)
			}
			s.metrics.ObserveRun(ctx, slug, status, elapsed, len(result.Rows))
			return result, err
		}
	}
}
