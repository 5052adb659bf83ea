package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/diary-cam/pkg/camera"
	"github.com/wachiwi/diary-cam/pkg/device"
	"github.com/wachiwi/diary-cam/pkg/network"
	"github.com/wachiwi/diary-cam/pkg/store"
)

// ArtifactLister reports what has been persisted.
type ArtifactLister interface {
	List() ([]store.Artifact, error)
}

type StatusResponse struct {
	Device            string `json:"device"`
	FirmwareVersion   string `json:"firmware_version"`
	WifiConnected     bool   `json:"wifi_connected"`
	IPAddress         string `json:"ip_address"`
	CameraInitialized bool   `json:"camera_initialized"`
	I2SInitialized    bool   `json:"i2s_initialized"`
	FrameCount        uint64 `json:"frame_count"`
	SignalStrength    int    `json:"signal_strength"`

	AudioBytesCaptured uint64 `json:"audio_bytes_captured"`
	CameraState        string `json:"camera_state"`
	Recoveries         uint64 `json:"recoveries"`
	CaptureFailures    uint64 `json:"capture_failures"`
	UptimeS            int64  `json:"uptime_s"`
	BootID             string `json:"boot_id"`
}

type StatusHandler struct {
	DeviceName      string
	FirmwareVersion string
	BootID          string
	Status          *device.Status
	Link            network.Link
	// CameraState reports the frame source state; nil means unknown.
	CameraState func() camera.State
	Artifacts   ArtifactLister
}

// Snapshot refreshes the link flag and builds the status document.
func (h *StatusHandler) Snapshot() StatusResponse {
	link := network.LinkStatus{}
	if h.Link != nil {
		link = h.Link.Status()
	}
	h.Status.SetLinkConnected(link.Connected)
	s := h.Status.Snapshot()

	state := "unknown"
	if h.CameraState != nil {
		state = h.CameraState().String()
	}

	return StatusResponse{
		Device:             h.DeviceName,
		FirmwareVersion:    h.FirmwareVersion,
		WifiConnected:      s.LinkConnected,
		IPAddress:          link.Address,
		CameraInitialized:  s.CameraInitialized,
		I2SInitialized:     s.SamplerInitialized,
		FrameCount:         s.FrameCount,
		SignalStrength:     link.SignalDBm,
		AudioBytesCaptured: s.AudioBytes,
		CameraState:        state,
		Recoveries:         s.Recoveries,
		CaptureFailures:    s.CaptureFailures,
		UptimeS:            int64(s.Uptime.Seconds()),
		BootID:             h.BootID,
	}
}

func (h *StatusHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.Snapshot())
}

// Checkpoints serves the device event log and the persisted artifacts.
func (h *StatusHandler) Checkpoints(c *gin.Context) {
	artifacts := []store.Artifact{}
	if h.Artifacts != nil {
		items, err := h.Artifacts.List()
		if err != nil {
			slog.Warn("Failed to list artifacts", "error", err)
		} else {
			artifacts = items
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"checkpoints": h.Status.Checkpoints().List(),
		"artifacts":   artifacts,
	})
}
