package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/diary-cam/pkg/audio"
)

// Snapshotter exposes the latest audio fill.
type Snapshotter interface {
	Snapshot() audio.Snapshot
}

type AudioHandler struct {
	Ring Snapshotter
}

// Latest serves the most recent fill as a WAV file. Without samples the
// body is a valid WAV header with no data.
func (h *AudioHandler) Latest(c *gin.Context) {
	var snap audio.Snapshot
	if h.Ring != nil {
		snap = h.Ring.Snapshot()
	}

	var buf bytes.Buffer
	if err := audio.WriteWAV(&buf, snap); err != nil {
		slog.Error("Failed to encode audio", "error", err)
		c.String(http.StatusInternalServerError, "Failed to encode audio")
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Audio-Sample-Rate", strconv.Itoa(snap.SampleRate))
	c.Header("X-Audio-Length", strconv.Itoa(snap.Length))
	c.Header("X-Audio-Ready", strconv.FormatBool(snap.Ready))
	c.Header("X-Audio-Seq", strconv.FormatUint(snap.Seq, 10))
	c.Data(http.StatusOK, "audio/wav", buf.Bytes())
}
