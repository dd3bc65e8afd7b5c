package observability

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "prdigest/server"

// Telemetry bundles the tracer and the instruments of the agent loop.
type Telemetry struct {
	Tracer      trace.Tracer
	Runs        metric.Int64Counter
	Steps       metric.Int64Histogram
	ToolCalls   metric.Int64Counter
	ToolLatency metric.Float64Histogram
}

// NewTelemetry creates instruments from the given providers. Nil providers
// fall back to the otel globals, which are no-ops until an SDK is installed.
func NewTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) (*Telemetry, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	t := &Telemetry{Tracer: tp.Tracer(instrumentationName)}
	var err error
	if t.Runs, err = meter.Int64Counter("agent.runs",
		metric.WithDescription("Agent runs by persona and outcome")); err != nil {
		return nil, errors.Wrap(err, "agent.runs")
	}
	if t.Steps, err = meter.Int64Histogram("agent.steps",
		metric.WithDescription("Generation steps per run")); err != nil {
		return nil, errors.Wrap(err, "agent.steps")
	}
	if t.ToolCalls, err = meter.Int64Counter("agent.tool_calls",
		metric.WithDescription("Tool calls by tool and status")); err != nil {
		return nil, errors.Wrap(err, "agent.tool_calls")
	}
	if t.ToolLatency, err = meter.Float64Histogram("agent.tool_latency",
		metric.WithDescription("Tool call latency"), metric.WithUnit("ms")); err != nil {
		return nil, errors.Wrap(err, "agent.tool_latency")
	}
	return t, nil
}
