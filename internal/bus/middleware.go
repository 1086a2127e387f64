package bus

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/pkg/logger"
)

// Tracing wraps every handler invocation in a span named after the topic.
// Errors are recorded on the span and returned unchanged.
func Tracing(tracer trace.Tracer) Middleware {
	return func(topic string, next Handler) Handler {
		return func(ctx context.Context, evt Event) (any, error) {
			attrs := []attribute.KeyValue{
				attribute.String("bus.topic", topic),
				attribute.String("bus.payload_kind", evt.Payload().Kind().String()),
			}
			if id := CorrelationID(ctx); id != "" {
				attrs = append(attrs, attribute.String("bus.correlation_id", id))
			}
			ctx, span := tracer.Start(ctx, "bus.handle "+topic,
				trace.WithSpanKind(trace.SpanKindConsumer),
				trace.WithAttributes(attrs...),
			)
			defer span.End()

			res, err := next(ctx, evt)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return res, err
		}
	}
}

// Logging logs each invocation at debug level and failures at warn level.
func Logging() Middleware {
	return func(topic string, next Handler) Handler {
		return func(ctx context.Context, evt Event) (any, error) {
			start := time.Now()
			res, err := next(ctx, evt)
			log := logger.Ctx(ctx)
			if err != nil {
				log.Warn("Event handler returned error",
					zap.String("topic", topic),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
				return res, err
			}
			log.Debug("Event handled",
				zap.String("topic", topic),
				zap.Duration("duration", time.Since(start)),
			)
			return res, err
		}
	}
}
