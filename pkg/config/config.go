// Package config loads the agent configuration from YAML with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/wachiwi/diary-cam/pkg/audio"
	"github.com/wachiwi/diary-cam/pkg/camera"
	"github.com/wachiwi/diary-cam/pkg/heartbeat"
	"github.com/wachiwi/diary-cam/pkg/scheduler"
	"github.com/wachiwi/diary-cam/pkg/telemetry"
	"gopkg.in/yaml.v3"
)

// Config represents the complete agent configuration
type Config struct {
	Device    DeviceConfig     `yaml:"device"`
	Log       LogConfig        `yaml:"log"`
	Server    ServerConfig     `yaml:"server"`
	Camera    camera.Config    `yaml:"camera"`
	Recovery  RecoveryConfig   `yaml:"recovery"`
	Audio     AudioConfig      `yaml:"audio"`
	Scheduler scheduler.Config `yaml:"scheduler"`
	Storage   StorageConfig    `yaml:"storage"`
	Network   NetworkConfig    `yaml:"network"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Heartbeat heartbeat.Config `yaml:"heartbeat"`
	Chime     ChimeConfig      `yaml:"chime"`
	Balena    BalenaConfig     `yaml:"balena"`
}

// DeviceConfig identifies the device in /status and heartbeats
type DeviceConfig struct {
	Name            string `yaml:"name"`
	FirmwareVersion string `yaml:"firmware_version"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// ServerConfig contains HTTP settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SerializeRequests runs one request at a time to completion.
	SerializeRequests bool          `yaml:"serialize_requests"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// RecoveryConfig bounds the camera recovery sequence
type RecoveryConfig struct {
	Attempts int           `yaml:"attempts"`
	Pause    time.Duration `yaml:"pause"`
}

type AudioConfig struct {
	Backend    string `yaml:"backend"` // auto, sim, alsa
	Device     string `yaml:"device"`  // ALSA device name
	SampleRate int    `yaml:"sample_rate"`
	BitDepth   int    `yaml:"bit_depth"`
	Channels   int    `yaml:"channels"`
}

type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

type NetworkConfig struct {
	// Interface is detected when empty.
	Interface string `yaml:"interface"`
}

type ChimeConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
}

// BalenaConfig is normally injected by the balena supervisor environment
type BalenaConfig struct {
	SupervisorAddress string        `yaml:"supervisor_address"`
	APIKey            string        `yaml:"api_key"`
	AppID             string        `yaml:"app_id"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	rp := camera.DefaultRecoveryPolicy()
	return Config{
		Device: DeviceConfig{
			Name:            "XIAO-ESP32S3-Sense",
			FirmwareVersion: "v2.0",
		},
		Log: LogConfig{Level: "info"},
		Server: ServerConfig{
			Addr:              ":80",
			SerializeRequests: true,
			ShutdownTimeout:   5 * time.Second,
		},
		Camera:   camera.DefaultConfig(),
		Recovery: RecoveryConfig{Attempts: rp.Attempts, Pause: rp.Pause},
		Audio: AudioConfig{
			Backend:    "auto",
			SampleRate: audio.DefaultSampleRate,
			BitDepth:   audio.DefaultBitDepth,
			Channels:   audio.DefaultChannels,
		},
		Scheduler: scheduler.DefaultConfig(),
		Storage:   StorageConfig{DataDir: "./diary-data"},
		Telemetry: telemetry.Config{ExportInterval: 10 * time.Second, SampleRatio: 1},
		Heartbeat: heartbeat.Config{
			Topic:    "diary-cam/status",
			Interval: 30 * time.Second,
		},
		Chime:  ChimeConfig{Volume: 0.3},
		Balena: BalenaConfig{PollInterval: 15 * time.Second},
	}
}

// Load reads a YAML configuration file over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// RecoveryPolicy converts the recovery section for the frame source.
func (c *Config) RecoveryPolicy() camera.RecoveryPolicy {
	return camera.RecoveryPolicy{Attempts: c.Recovery.Attempts, Pause: c.Recovery.Pause}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"AGENT_LOG_LEVEL":           &cfg.Log.Level,
		"AGENT_HTTP_ADDR":           &cfg.Server.Addr,
		"AGENT_CAMERA_BACKEND":      &cfg.Camera.Backend,
		"AGENT_AUDIO_BACKEND":       &cfg.Audio.Backend,
		"AGENT_AUDIO_DEVICE":        &cfg.Audio.Device,
		"AGENT_DATA_DIR":            &cfg.Storage.DataDir,
		"AGENT_NETWORK_INTERFACE":   &cfg.Network.Interface,
		"AGENT_OTEL_ENDPOINT":       &cfg.Telemetry.Endpoint,
		"AGENT_MQTT_BROKER":         &cfg.Heartbeat.Broker,
		"BALENA_SUPERVISOR_ADDRESS": &cfg.Balena.SupervisorAddress,
		"BALENA_SUPERVISOR_API_KEY": &cfg.Balena.APIKey,
		"BALENA_APP_ID":             &cfg.Balena.AppID,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"AGENT_SERIALIZE_REQUESTS": &cfg.Server.SerializeRequests,
		"AGENT_CHIME":              &cfg.Chime.Enabled,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if err := c.Camera.Validate(); err != nil {
		return fmt.Errorf("camera: %w", err)
	}
	if c.Recovery.Attempts < 1 {
		return fmt.Errorf("recovery.attempts must be at least 1")
	}
	if c.Recovery.Pause < 0 {
		return fmt.Errorf("recovery.pause must not be negative")
	}
	if c.Audio.SampleRate <= 0 || c.Audio.Channels < 1 {
		return fmt.Errorf("audio format %d Hz x %d is invalid", c.Audio.SampleRate, c.Audio.Channels)
	}
	if c.Audio.BitDepth != 16 {
		return fmt.Errorf("audio.bit_depth must be 16")
	}
	if c.Scheduler.FrameInterval < time.Second {
		return fmt.Errorf("scheduler.frame_interval must be at least 1s")
	}
	if c.Scheduler.AudioInterval <= 0 {
		return fmt.Errorf("scheduler.audio_interval must be positive")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Heartbeat.Enabled() {
		if c.Heartbeat.Topic == "" {
			return fmt.Errorf("heartbeat.topic is required when a broker is set")
		}
		if c.Heartbeat.QoS > 2 {
			return fmt.Errorf("heartbeat.qos must be 0, 1 or 2")
		}
		if c.Heartbeat.Interval < time.Second {
			return fmt.Errorf("heartbeat.interval must be at least 1s")
		}
	}
	if c.Chime.Volume < 0 || c.Chime.Volume > 1 {
		return fmt.Errorf("chime.volume must be between 0 and 1")
	}
	return nil
}
