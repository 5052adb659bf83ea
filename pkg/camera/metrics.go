package camera

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	grabFailures metric.Int64Counter
	recoveries   metric.Int64Counter

	outcomeOK     = metric.WithAttributes(attribute.String("outcome", "ok"))
	outcomeFailed = metric.WithAttributes(attribute.String("outcome", "failed"))
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/diary-cam/pkg/camera")
	grabFailures, err = meter.Int64Counter("camera.grab.failures",
		metric.WithDescription("Frame grabs that returned no frame"),
		metric.WithUnit("{grabs}"),
	)
	if err != nil {
		slog.Error("Failed to create grab failure metric", "error", err)
	}
	recoveries, err = meter.Int64Counter("camera.recoveries",
		metric.WithDescription("Camera recovery sequences by outcome"),
		metric.WithUnit("{recoveries}"),
	)
	if err != nil {
		slog.Error("Failed to create recovery metric", "error", err)
	}
}
