package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/types"
)

const (
	serviceName    = "voice-coach"
	serviceVersion = "1.0.0"
)

// MetricsConfig holds OTLP exporter configuration.
type MetricsConfig struct {
	Endpoint string
	Insecure bool
	Interval time.Duration
}

// Recorder is the assessment metrics sink plus a shutdown hook.
type Recorder interface {
	assessment.Recorder
	Close(ctx context.Context) error
}

// MetricsRecorder exports assessment metrics to an OTEL collector.
type MetricsRecorder struct {
	provider      *sdkmetric.MeterProvider
	sessionsTotal metric.Int64Counter
	scoreHist     metric.Int64Histogram
	durationHist  metric.Float64Histogram
	failuresTotal metric.Int64Counter
}

var _ assessment.Recorder = (*MetricsRecorder)(nil)

// NewRecorder returns an OTLP-backed recorder, or a no-op recorder when no
// endpoint is configured.
func NewRecorder(ctx context.Context, cfg MetricsConfig) (Recorder, error) {
	if cfg.Endpoint == "" {
		return NoopRecorder{}, nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}
	rec, err := newMetricsRecorder(ctx, sdkmetric.NewPeriodicReader(exp, readerOpts...))
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(rec.provider)
	return rec, nil
}

func newMetricsRecorder(ctx context.Context, reader sdkmetric.Reader) (*MetricsRecorder, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)

	sessionsTotal, err := meter.Int64Counter(
		"voicecoach_sessions_total",
		metric.WithDescription("Sessions persisted, by type"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sessions counter: %w", err)
	}

	scoreHist, err := meter.Int64Histogram(
		"voicecoach_session_score",
		metric.WithDescription("Overall score of persisted sessions"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating score histogram: %w", err)
	}

	durationHist, err := meter.Float64Histogram(
		"voicecoach_aggregation_duration_seconds",
		metric.WithDescription("Time spent transcribing and scoring one session"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	failuresTotal, err := meter.Int64Counter(
		"voicecoach_aggregation_failures_total",
		metric.WithDescription("Aborted aggregations, by failure kind"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}

	return &MetricsRecorder{
		provider:      provider,
		sessionsTotal: sessionsTotal,
		scoreHist:     scoreHist,
		durationHist:  durationHist,
		failuresTotal: failuresTotal,
	}, nil
}

// RecordSession counts one persisted session and its overall score.
func (r *MetricsRecorder) RecordSession(ctx context.Context, sessionType types.SessionType, overall int, terminated bool) {
	opt := metric.WithAttributes(
		attribute.String("session_type", string(sessionType)),
		attribute.Bool("terminated", terminated),
	)
	r.sessionsTotal.Add(ctx, 1, opt)
	r.scoreHist.Record(ctx, int64(overall), opt)
}

// RecordAggregation records how long an aggregation took and, on failure, why.
func (r *MetricsRecorder) RecordAggregation(ctx context.Context, sessionType types.SessionType, d time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.durationHist.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("session_type", string(sessionType)),
		attribute.String("outcome", outcome),
	))
	if err != nil {
		r.failuresTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("session_type", string(sessionType)),
			attribute.String("kind", FailureKind(err)),
		))
	}
}

// Close shuts down the provider and flushes any pending metrics.
func (r *MetricsRecorder) Close(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

// FailureKind names the external call that aborted an aggregation.
func FailureKind(err error) string {
	var (
		transcription *assessment.TranscriptionFailedError
		service       *assessment.FeedbackServiceFailedError
		parse         *assessment.FeedbackParseFailedError
	)
	switch {
	case errors.As(err, &transcription):
		return "transcription"
	case errors.As(err, &service):
		return "feedback_service"
	case errors.As(err, &parse):
		return "feedback_parse"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "other"
	}
}

// NoopRecorder drops all metrics.
type NoopRecorder struct{}

// RecordSession does nothing.
func (NoopRecorder) RecordSession(context.Context, types.SessionType, int, bool) {}

// RecordAggregation does nothing.
func (NoopRecorder) RecordAggregation(context.Context, types.SessionType, time.Duration, error) {}

// Close does nothing.
func (NoopRecorder) Close(context.Context) error { return nil }
