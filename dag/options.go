package dag

import (
	"fmt"

	"github.com/dshills/chronodag/dag/emit"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type config struct {
	host    Host
	emitter emit.Emitter
	metrics *Metrics
	tracer  trace.Tracer
	runID   string
}

func defaultConfig() *config {
	return &config{
		emitter: emit.NewNullEmitter(),
		metrics: NewNullMetrics(),
		tracer:  otel.Tracer("github.com/dshills/chronodag/dag"),
		runID:   uuid.NewString(),
	}
}

// Option configures a Driver at construction time.
type Option func(*config) error

// WithHost installs a Host for cooperative `wait` delegation, bypassing
// the local polling fallback.
func WithHost(h Host) Option {
	return func(c *config) error {
		c.host = h
		return nil
	}
}

// WithEmitter installs an observability sink for node, generation, and
// guard events. The default discards everything.
func WithEmitter(e emit.Emitter) Option {
	return func(c *config) error {
		if e == nil {
			return fmt.Errorf("dag: WithEmitter requires a non-nil Emitter")
		}
		c.emitter = e
		return nil
	}
}

// WithMetrics installs a Prometheus metrics collector. The default
// records nothing.
func WithMetrics(m *Metrics) Option {
	return func(c *config) error {
		if m == nil {
			return fmt.Errorf("dag: WithMetrics requires a non-nil Metrics")
		}
		c.metrics = m
		return nil
	}
}

// WithTracer installs an OpenTelemetry tracer for generation and node
// spans. The default resolves to the global tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *config) error {
		c.tracer = t
		return nil
	}
}

// WithRunID overrides the generated run identifier, e.g. to align with a
// host's own workflow execution id.
func WithRunID(id string) Option {
	return func(c *config) error {
		if id == "" {
			return fmt.Errorf("dag: WithRunID requires a non-empty id")
		}
		c.runID = id
		return nil
	}
}
