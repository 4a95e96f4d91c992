package messaging

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// InjectTrace writes the span context of ctx into a broker header set.
func InjectTrace(ctx context.Context, set func(key, value string)) {
	otel.GetTextMapPropagator().Inject(ctx, funcCarrier{set: set})
}

// ExtractTrace restores the publisher's span context from broker headers.
func ExtractTrace(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

type funcCarrier struct {
	set func(key, value string)
}

func (c funcCarrier) Get(string) string { return "" }
func (c funcCarrier) Set(key, value string) { c.set(key, value) }
func (c funcCarrier) Keys() []string { return nil }
