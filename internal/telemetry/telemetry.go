// Package telemetry builds the zap logger and the OpenTelemetry tracer
// provider used by the host application.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls Setup.
type Options struct {
	ServiceName string
	LogLevel    string    // debug, info, warn, error; default info
	JSONLogs    bool      // production JSON encoder instead of console
	LogOutput   io.Writer // default os.Stdout
	TraceOutput io.Writer // default os.Stdout; io.Discard disables span output
}

// NewLogger builds a zap logger writing to out.
func NewLogger(level string, json bool, out io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = os.Stdout
	}
	var encoder zapcore.Encoder
	if json {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), lvl)
	return zap.New(core, zap.AddCaller()), nil
}

// Setup installs a global tracer provider exporting spans with stdouttrace
// and returns it with a logger and a shutdown function.
func Setup(ctx context.Context, opts Options) (*zap.Logger, *sdktrace.TracerProvider, func(context.Context), error) {
	if opts.LogLevel == "" {
		opts.LogLevel = "info"
	}
	logger, err := NewLogger(opts.LogLevel, opts.JSONLogs, opts.LogOutput)
	if err != nil {
		return nil, nil, nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(opts.ServiceName)))
	if err != nil {
		return nil, nil, nil, err
	}

	traceOut := opts.TraceOutput
	if traceOut == nil {
		traceOut = os.Stdout
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut))
	if err != nil {
		return nil, nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	shutdown := func(ctx context.Context) {
		_ = logger.Sync()
		_ = tp.Shutdown(ctx)
	}
	return logger, tp, shutdown, nil
}
