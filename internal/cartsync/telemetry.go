package cartsync

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/kart-cart/internal/domain/cart"
)

const instrumentationName = "github.com/xenking/kart-cart/internal/cartsync"

type telemetry struct {
	tracer    trace.Tracer
	mutations metric.Int64Counter
	remote    metric.Float64Histogram
}

func newTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*telemetry, error) {
	if tp == nil {
		tp = tracenoop.NewTracerProvider()
	}
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}

	meter := mp.Meter(instrumentationName)
	mutations, err := meter.Int64Counter("cart.mutations",
		metric.WithDescription("Cart mutations by operation, identity mode and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cart.mutations")
	}
	remote, err := meter.Float64Histogram("cart.remote.duration",
		metric.WithDescription("Order service call latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cart.remote.duration")
	}

	return &telemetry{
		tracer:    tp.Tracer(instrumentationName),
		mutations: mutations,
		remote:    remote,
	}, nil
}

func (t *telemetry) countMutation(ctx context.Context, op string, mode cart.Mode, err error) {
	t.mutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("mode", mode.String()),
		attribute.String("outcome", outcome(err)),
	))
}

func (t *telemetry) observeRemote(ctx context.Context, op string, start time.Time, err error) {
	ms := float64(time.Since(start)) / float64(time.Millisecond)
	t.remote.Record(ctx, ms, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome(err)),
	))
}

// outcome classifies err for metric attributes.
func outcome(err error) string {
	var (
		network *cart.NetworkError
		api     *cart.APIError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &network):
		return "network_error"
	case errors.As(err, &api):
		return "api_error"
	default:
		return "error"
	}
}
