package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/domain"
	"craftbot.io/craftbot/internal/pkg/logger"
)

// DiscoveryListener observes craft.element.discovered broadcasts.
type DiscoveryListener struct {
	discovered metric.Int64Counter
}

// NewDiscoveryListener creates the listener and its counter on meter.
func NewDiscoveryListener(meter metric.Meter) (*DiscoveryListener, error) {
	discovered, err := meter.Int64Counter("craft.elements.discovered",
		metric.WithDescription("Number of newly generated elements"),
		metric.WithUnit("{element}"),
	)
	if err != nil {
		return nil, err
	}
	return &DiscoveryListener{discovered: discovered}, nil
}

// Register subscribes the broadcast topic.
func (l *DiscoveryListener) Register(b *bus.Bus) {
	b.Subscribe(domain.TopicElementDiscovered, l.handle)
}

func (l *DiscoveryListener) handle(ctx context.Context, evt bus.Event) (any, error) {
	p, err := bus.Decode[domain.ElementDiscoveredPayload](evt)
	if err != nil {
		return nil, err
	}
	l.discovered.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("craft.identical_inputs", p.Inputs[0] == p.Inputs[1]),
	))
	logger.Ctx(ctx).Info("Element discovered",
		zap.Int64("element_id", p.Element.ID),
		zap.String("name", p.Element.Name),
		zap.Int64("user_id", p.UserID),
		zap.Int64s("inputs", p.Inputs[:]),
	)
	return nil, nil
}
