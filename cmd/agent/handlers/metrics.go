package handlers

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	framesServed    metric.Int64Counter
	acquireFailures metric.Int64Counter
	photosPersisted metric.Int64Counter

	reasonNotInitialized = metric.WithAttributes(attribute.String("reason", "not_initialized"))
	reasonCapture        = metric.WithAttributes(attribute.String("reason", "capture_failed"))
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/diary-cam/cmd/agent")
	framesServed, err = meter.Int64Counter("agent.frames.served",
		metric.WithDescription("Total number of frames sent to clients"),
		metric.WithUnit("{frames}"),
	)
	if err != nil {
		slog.Error("Failed to create frame metrics", "error", err)
	}
	acquireFailures, err = meter.Int64Counter("agent.acquire.failures",
		metric.WithDescription("Frame requests answered with 503"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		slog.Error("Failed to create acquire failure metrics", "error", err)
	}
	photosPersisted, err = meter.Int64Counter("agent.photos.persisted",
		metric.WithDescription("Total number of photos written to storage"),
		metric.WithUnit("{photos}"),
	)
	if err != nil {
		slog.Error("Failed to create photo metrics", "error", err)
	}
}
