package balena

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	updatePendingGauge    metric.Int64Gauge
	downloadProgressGauge metric.Float64Gauge
	statusGauge           metric.Int64Gauge
)

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/diary-cam/pkg/balena")

	updatePendingGauge, err = meter.Int64Gauge("balena.update.pending", metric.WithDescription("1 if an update is pending, 0 otherwise"))
	if err != nil {
		slog.Error("Failed to create update_pending gauge", "error", err)
	}

	downloadProgressGauge, err = meter.Float64Gauge("balena.update.download_progress", metric.WithDescription("Percentage of update downloaded"))
	if err != nil {
		slog.Error("Failed to create download_progress gauge", "error", err)
	}

	statusGauge, err = meter.Int64Gauge("balena.status_code", metric.WithDescription("Status code mapping (1=Idle, 2=Downloading, 3=Installing, 0=Unknown)"))
	if err != nil {
		slog.Error("Failed to create status gauge", "error", err)
	}
}

// StatusCode maps the supervisor status text to the balena.status_code gauge value.
func StatusCode(status string) int64 {
	switch status {
	case "Idle":
		return 1
	case "Downloading":
		return 2
	case "Installing":
		return 3
	}
	return 0
}

// RecordState polls the supervisor once and records the update gauges.
// It is meant to run as a scheduled job.
func (c *SupervisorClient) RecordState() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	state, err := c.GetState(ctx)
	if err != nil {
		slog.Error("Failed to fetch supervisor state", "error", err)
		return
	}

	pendingVal := int64(0)
	if state.UpdatePending {
		pendingVal = 1
	}
	updatePendingGauge.Record(ctx, pendingVal)
	downloadProgressGauge.Record(ctx, state.DownloadProgress)
	statusGauge.Record(ctx, StatusCode(state.Status), metric.WithAttributes(attribute.String("status_text", state.Status)))

	slog.Debug("Recorded supervisor state", "status", state.Status, "progress", state.DownloadProgress, "pending", state.UpdatePending)
}
