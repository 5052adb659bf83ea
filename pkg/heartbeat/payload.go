package heartbeat

import (
	"time"

	"github.com/wachiwi/diary-cam/pkg/device"
)

// Payload is the JSON heartbeat body.
type Payload struct {
	Device            string    `json:"device"`
	BootID            string    `json:"boot_id"`
	Timestamp         time.Time `json:"timestamp"`
	UptimeS           int64     `json:"uptime_s"`
	WifiConnected     bool      `json:"wifi_connected"`
	CameraInitialized bool      `json:"camera_initialized"`
	I2SInitialized    bool      `json:"i2s_initialized"`
	FrameCount        uint64    `json:"frame_count"`
	AudioBytes        uint64    `json:"audio_bytes_captured"`
	Recoveries        uint64    `json:"recoveries"`
}

// NewPayload builds a heartbeat from a status snapshot.
func NewPayload(deviceName, bootID string, s device.Snapshot) Payload {
	return Payload{
		Device:            deviceName,
		BootID:            bootID,
		Timestamp:         time.Now().UTC(),
		UptimeS:           int64(s.Uptime.Seconds()),
		WifiConnected:     s.LinkConnected,
		CameraInitialized: s.CameraInitialized,
		I2SInitialized:    s.SamplerInitialized,
		FrameCount:        s.FrameCount,
		AudioBytes:        s.AudioBytes,
		Recoveries:        s.Recoveries,
	}
}
