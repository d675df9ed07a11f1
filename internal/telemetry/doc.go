// Package telemetry centralizes logger and tracer construction for the
// fabric: a zap logger built from LogConfig, and an OTel TracerProvider
// built from TelemetryConfig. When tracing is disabled, no exporter is
// created and the global tracer provider is left untouched.
package telemetry
