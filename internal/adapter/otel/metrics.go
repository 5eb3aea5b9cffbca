package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "orchestrator"

// Metrics holds all orchestrator metric instruments.
type Metrics struct {
	ProviderCalls    metric.Int64Counter
	ProviderErrors   metric.Int64Counter
	PushesCompleted  metric.Int64Counter
	PullRequests     metric.Int64Counter
	SnippetsImported metric.Int64Counter
	CallDuration     metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.ProviderCalls, err = meter.Int64Counter("orchestrator.provider.calls",
		metric.WithDescription("Number of provider API operations"))
	if err != nil {
		return nil, err
	}

	m.ProviderErrors, err = meter.Int64Counter("orchestrator.provider.errors",
		metric.WithDescription("Number of failed provider API operations"))
	if err != nil {
		return nil, err
	}

	m.PushesCompleted, err = meter.Int64Counter("orchestrator.pushes.completed",
		metric.WithDescription("Number of branch pushes completed"))
	if err != nil {
		return nil, err
	}

	m.PullRequests, err = meter.Int64Counter("orchestrator.pullrequests.created",
		metric.WithDescription("Number of pull requests created"))
	if err != nil {
		return nil, err
	}

	m.SnippetsImported, err = meter.Int64Counter("orchestrator.snippets.imported",
		metric.WithDescription("Number of marketplace snippets imported"))
	if err != nil {
		return nil, err
	}

	m.CallDuration, err = meter.Float64Histogram("orchestrator.provider.duration_seconds",
		metric.WithDescription("Provider API operation duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
