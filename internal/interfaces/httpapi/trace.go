package httpapi

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/riskibarqy/courtstats/internal/domain/gamestats"
)

const handlerSpanPrefix = "httpapi.Handler."

var (
	apiTracer = otel.Tracer("courtstats/internal/interfaces/httpapi")
	noopSpan  = trace.SpanFromContext(context.Background())
)

// startSpan opens a child span for handlers only. Helpers and middleware, and
// requests the tracing middleware filtered out, get a no-op span.
func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if !trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx, noopSpan
	}
	if !shouldCreateHTTPAPISpan(name) {
		return ctx, noopSpan
	}
	return apiTracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func shouldCreateHTTPAPISpan(name string) bool {
	return strings.HasPrefix(name, handlerSpanPrefix)
}

func subjectAttributes(kind gamestats.SubjectKind, subjectID int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("stats.subject_kind", string(kind)),
		attribute.Int64("stats.subject_id", subjectID),
	}
}

func pairAttributes(playerID, teamID int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("stats.player_id", playerID),
		attribute.Int64("stats.team_id", teamID),
	}
}
