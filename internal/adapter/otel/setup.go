// Package otel provides metric and trace instruments for the orchestrator.
// Instruments go through the global otel providers; wiring an exporter is an
// operator concern and stays outside this package.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc is called to flush and shut down the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function. Deployments that want
// exported traces install their own TracerProvider before calling this.
func InitTracer(serviceName string) ShutdownFunc {
	slog.Info("telemetry initialized", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
