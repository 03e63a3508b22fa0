// Package observe provides the OpenTelemetry metric instruments recorded by
// chordlet sessions, and the Prometheus bridge used by chordletd to expose
// them.
//
// Sessions record through a [Metrics] value. The daemon installs a global
// meter provider with [InitProvider] and uses [DefaultMetrics]; tests should
// use [NewMetrics] with their own provider to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all chordlet metrics.
const meterName = "github.com/Paranoid-AF/chordlet"

// Service endpoints, used as the "endpoint" attribute.
const (
	EndpointTranslate = "translate"
	EndpointSuggest   = "suggest"
	EndpointLearn     = "learn"
)

// Metrics holds the instruments for one process. All fields are safe for
// concurrent use.
type Metrics struct {
	// Chords counts completed chords sent for decoding.
	Chords metric.Int64Counter

	// Resolved counts decoded characters written to the output.
	Resolved metric.Int64Counter

	// Stale counts decoding responses discarded because their token no
	// longer owned the placeholder.
	Stale metric.Int64Counter

	// Undecoded counts chords the service could not decode.
	Undecoded metric.Int64Counter

	// Corrections counts characters the service substituted.
	Corrections metric.Int64Counter

	// ServiceErrors counts failed service calls. Use with attribute:
	//   attribute.String("endpoint", ...)
	ServiceErrors metric.Int64Counter

	// SuggestionFetches counts suggestion requests. Use with attribute:
	//   attribute.Bool("final", ...)
	SuggestionFetches metric.Int64Counter

	// Acceptances counts accepted suggestions. Use with attribute:
	//   attribute.Bool("final", ...)
	Acceptances metric.Int64Counter

	// TranslateDuration tracks decoding round-trip latency.
	TranslateDuration metric.Float64Histogram

	// ActiveSessions tracks the number of running sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets are histogram boundaries (in seconds) for service calls
// made between keystrokes.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// NewMetrics creates a fully initialised [Metrics] using mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Chords, err = m.Int64Counter("chordlet.chords",
		metric.WithDescription("Completed chords sent for decoding."),
	); err != nil {
		return nil, err
	}
	if met.Resolved, err = m.Int64Counter("chordlet.resolved",
		metric.WithDescription("Decoded characters written to the output."),
	); err != nil {
		return nil, err
	}
	if met.Stale, err = m.Int64Counter("chordlet.stale",
		metric.WithDescription("Decoding responses discarded as stale."),
	); err != nil {
		return nil, err
	}
	if met.Undecoded, err = m.Int64Counter("chordlet.undecoded",
		metric.WithDescription("Chords without a confident decoding."),
	); err != nil {
		return nil, err
	}
	if met.Corrections, err = m.Int64Counter("chordlet.corrections",
		metric.WithDescription("Characters substituted by the decoding service."),
	); err != nil {
		return nil, err
	}
	if met.ServiceErrors, err = m.Int64Counter("chordlet.service.errors",
		metric.WithDescription("Failed service calls by endpoint."),
	); err != nil {
		return nil, err
	}
	if met.SuggestionFetches, err = m.Int64Counter("chordlet.suggestion.fetches",
		metric.WithDescription("Suggestion requests by finality."),
	); err != nil {
		return nil, err
	}
	if met.Acceptances, err = m.Int64Counter("chordlet.suggestion.acceptances",
		metric.WithDescription("Accepted suggestions by finality."),
	); err != nil {
		return nil, err
	}
	if met.TranslateDuration, err = m.Float64Histogram("chordlet.translate.duration",
		metric.WithDescription("Latency of chord decoding."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("chordlet.active_sessions",
		metric.WithDescription("Number of running sessions."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics], created on first call
// from [otel.GetMeterProvider]. Call [InitProvider] first for the instruments
// to be exported.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordServiceError increments the error counter for endpoint.
func (m *Metrics) RecordServiceError(ctx context.Context, endpoint string) {
	m.ServiceErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("endpoint", endpoint)),
	)
}

// RecordSuggestionFetch increments the fetch counter.
func (m *Metrics) RecordSuggestionFetch(ctx context.Context, final bool) {
	m.SuggestionFetches.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("final", final)),
	)
}

// RecordAcceptance increments the acceptance counter.
func (m *Metrics) RecordAcceptance(ctx context.Context, final bool) {
	m.Acceptances.Add(ctx, 1,
		metric.WithAttributes(attribute.Bool("final", final)),
	)
}
