package audio

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var audioBytes metric.Int64Counter

func init() {
	var err error
	meter := otel.Meter("github.com/wachiwi/diary-cam/pkg/audio")
	audioBytes, err = meter.Int64Counter("audio.captured",
		metric.WithDescription("PCM bytes moved from the sampler into the live tap"),
		metric.WithUnit("By"),
	)
	if err != nil {
		slog.Error("Failed to create audio bytes metric", "error", err)
	}
}
