// Package telemetry sets up OpenTelemetry tracing and metrics export for
// deepagent.
//
// New installs global tracer and meter providers backed by OTLP exporters
// (gRPC or HTTP/protobuf) and W3C trace-context propagation. Telemetry is
// off by default; with it off, Tracer and Meter fall through to whatever
// global providers are registered, which are no-ops unless a test installs
// its own.
//
// An exporter that cannot be built marks the Provider degraded instead of
// failing startup:
//
//	tp, err := telemetry.New(ctx, &cfg.Telemetry, telemetry.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	defer tp.Shutdown(context.Background())
package telemetry
