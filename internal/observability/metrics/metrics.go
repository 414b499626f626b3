package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsAppended  metric.Int64Counter
	handlerFailures metric.Int64Counter
	commandsQueued  metric.Int64Counter
	jobOutcomes     metric.Int64Counter
	chatThrottled   metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "memberbridge"
	}
	meter := provider.Meter(name)

	eventsAppended, err := meter.Int64Counter("memberbridge_events_appended_total")
	if err != nil {
		return nil, err
	}
	handlerFailures, err := meter.Int64Counter("memberbridge_handler_failures_total")
	if err != nil {
		return nil, err
	}
	commandsQueued, err := meter.Int64Counter("memberbridge_commands_enqueued_total")
	if err != nil {
		return nil, err
	}
	jobOutcomes, err := meter.Int64Counter("memberbridge_job_outcomes_total")
	if err != nil {
		return nil, err
	}
	chatThrottled, err := meter.Int64Counter("memberbridge_chat_throttled_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsAppended:  eventsAppended,
		handlerFailures: handlerFailures,
		commandsQueued:  commandsQueued,
		jobOutcomes:     jobOutcomes,
		chatThrottled:   chatThrottled,
	}, nil
}

// RecordEventAppended increments journal append counts.
func (m *Metrics) RecordEventAppended(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.eventsAppended.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordHandlerFailure increments failed projector and reactor invocations.
func (m *Metrics) RecordHandlerFailure(ctx context.Context, handler, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("handler", strings.TrimSpace(handler)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.handlerFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCommandEnqueued increments command enqueue counts.
func (m *Metrics) RecordCommandEnqueued(ctx context.Context, command string, duplicate bool) {
	if m == nil {
		return
	}
	result := "queued"
	if duplicate {
		result = "duplicate"
	}
	attrs := FilterAttributes(
		attribute.String("command", strings.TrimSpace(command)),
		attribute.String("status", result),
	)
	m.commandsQueued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordJobOutcome increments job executions by final attempt status.
func (m *Metrics) RecordJobOutcome(ctx context.Context, command, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("command", strings.TrimSpace(command)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.jobOutcomes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordChatThrottled increments calls delayed by the chat rate limiter.
func (m *Metrics) RecordChatThrottled(ctx context.Context, command string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("command", strings.TrimSpace(command)))
	m.chatThrottled.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"event_type": {},
	"handler":    {},
	"command":    {},
	"status":     {},
	"reason":     {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
