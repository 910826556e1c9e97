package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/jonathan/voice-coach/internal/assessment"
	"github.com/jonathan/voice-coach/internal/types"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestMetricsRecorder_RecordSession(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	rec, err := newMetricsRecorder(context.Background(), reader)
	require.NoError(t, err)
	defer rec.Close(context.Background())

	rec.RecordSession(context.Background(), types.SessionHR, 80, false)
	rec.RecordSession(context.Background(), types.SessionHR, 60, false)

	metrics := collect(t, reader)

	sessions, ok := metrics["voicecoach_sessions_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sessions.DataPoints, 1)
	assert.Equal(t, int64(2), sessions.DataPoints[0].Value)

	scores, ok := metrics["voicecoach_session_score"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, scores.DataPoints, 1)
	assert.Equal(t, uint64(2), scores.DataPoints[0].Count)
	assert.Equal(t, int64(140), scores.DataPoints[0].Sum)
}

func TestMetricsRecorder_RecordAggregationFailure(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	rec, err := newMetricsRecorder(context.Background(), reader)
	require.NoError(t, err)
	defer rec.Close(context.Background())

	rec.RecordAggregation(context.Background(), types.SessionTechnical, 2*time.Second, nil)
	rec.RecordAggregation(context.Background(), types.SessionTechnical, time.Second,
		&assessment.TranscriptionFailedError{Index: 1, Cause: errors.New("503")})

	metrics := collect(t, reader)

	durations, ok := metrics["voicecoach_aggregation_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.Len(t, durations.DataPoints, 2, "ok and error outcomes are separate series")

	failures, ok := metrics["voicecoach_aggregation_failures_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, failures.DataPoints, 1)
	kind, _ := failures.DataPoints[0].Attributes.Value("kind")
	assert.Equal(t, "transcription", kind.AsString())
}

func TestFailureKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&assessment.TranscriptionFailedError{Cause: errors.New("x")}, "transcription"},
		{&assessment.FeedbackServiceFailedError{Cause: errors.New("x")}, "feedback_service"},
		{&assessment.FeedbackParseFailedError{Cause: errors.New("x")}, "feedback_parse"},
		{fmt.Errorf("wrapped: %w", &assessment.FeedbackParseFailedError{Cause: errors.New("x")}), "feedback_parse"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureKind(tt.err))
		})
	}
}

func TestNewRecorder_NoEndpointIsNoop(t *testing.T) {
	rec, err := NewRecorder(context.Background(), MetricsConfig{})
	require.NoError(t, err)

	assert.IsType(t, NoopRecorder{}, rec)
	rec.RecordSession(context.Background(), types.SessionHR, 1, false)
	assert.NoError(t, rec.Close(context.Background()))
}
