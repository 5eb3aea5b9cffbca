package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "orchestrator"

// StartPushSpan starts a span for a branch push.
func StartPushSpan(ctx context.Context, provider, repo, branch string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "push",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("repo", repo),
			attribute.String("branch", branch),
		),
	)
}

// StartPullRequestSpan starts a span for pull request creation.
func StartPullRequestSpan(ctx context.Context, provider, repo string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "pullrequest",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("repo", repo),
		),
	)
}

// StartMarketplaceSpan starts a span for a marketplace operation.
func StartMarketplaceSpan(ctx context.Context, provider, operation string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "marketplace",
		trace.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("operation", operation),
		),
	)
}
