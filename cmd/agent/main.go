package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wachiwi/diary-cam/cmd/agent/handlers"
	"github.com/wachiwi/diary-cam/pkg/audio"
	"github.com/wachiwi/diary-cam/pkg/balena"
	"github.com/wachiwi/diary-cam/pkg/camera"
	"github.com/wachiwi/diary-cam/pkg/chime"
	"github.com/wachiwi/diary-cam/pkg/config"
	"github.com/wachiwi/diary-cam/pkg/device"
	"github.com/wachiwi/diary-cam/pkg/heartbeat"
	"github.com/wachiwi/diary-cam/pkg/logger"
	"github.com/wachiwi/diary-cam/pkg/network"
	"github.com/wachiwi/diary-cam/pkg/scheduler"
	"github.com/wachiwi/diary-cam/pkg/store"
	"github.com/wachiwi/diary-cam/pkg/system"
	"github.com/wachiwi/diary-cam/pkg/telemetry"
)

const serviceName = "diary-cam"

//go:embed templates/*
var templateFS embed.FS

func main() {
	configPath := flag.String("config", os.Getenv("AGENT_CONFIG"), "Path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", "path", *configPath, "error", err)
	}
	logger.Setup(cfg.Log.Level)
	gin.SetMode(gin.ReleaseMode)

	slog.Info("AutoDiary agent starting", "device", cfg.Device.Name, "firmware", cfg.Device.FirmwareVersion)

	status := device.NewStatus()
	bootID := uuid.NewString()
	status.Record("boot", bootID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry, telemetry.Identity{
		Service:  serviceName,
		Version:  cfg.Device.FirmwareVersion,
		Device:   cfg.Device.Name,
		Instance: bootID,
	})
	if err != nil {
		slog.Error("Failed to set up telemetry, continuing without export", "error", err)
		shutdownTelemetry = func(context.Context) error { return nil }
	}

	// [1] Storage
	st := store.NewFileStore(cfg.Storage.DataDir)
	slog.Info("Storage ready", "dir", st.Dir())

	// [2] Network
	link := setupLink(cfg.Network.Interface)

	// [3] Camera
	source := setupCamera(cfg, status)

	// [4] Microphone
	ring := setupAudio(cfg, status)

	// [5] Background loops
	sched, err := scheduler.New(cfg.Scheduler, ring, slog.Default())
	if err != nil {
		logger.Fatal("Failed to create scheduler", "error", err)
	}

	restarter := system.Restarter(system.ExitRestarter{Code: 1})
	if cfg.Balena.SupervisorAddress != "" {
		client, err := balena.NewSupervisorClient(cfg.Balena.SupervisorAddress, cfg.Balena.APIKey, cfg.Balena.AppID)
		if err != nil {
			slog.Warn("Balena supervisor not usable", "error", err)
		} else {
			restarter = system.Fallback{Primary: client, Secondary: restarter}
			link = network.AddressFallback{Link: link, Address: client.LastAddress}
			go client.RecordState()
			if err := sched.AddJob(fmt.Sprintf("@every %s", cfg.Balena.PollInterval), "balena-state", client.RecordState); err != nil {
				slog.Error("Failed to schedule supervisor polling", "error", err)
			}
		}
	}

	statusHandler := &handlers.StatusHandler{
		DeviceName:      cfg.Device.Name,
		FirmwareVersion: cfg.Device.FirmwareVersion,
		BootID:          bootID,
		Status:          status,
		Link:            link,
		CameraState:     source.State,
		Artifacts:       st,
	}

	var publisher *heartbeat.Publisher
	if cfg.Heartbeat.Enabled() {
		publisher = heartbeat.NewPublisher(cfg.Heartbeat, func() heartbeat.Payload {
			statusHandler.Snapshot() // refreshes the link flag
			return heartbeat.NewPayload(cfg.Device.Name, bootID, status.Snapshot())
		})
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := publisher.Connect(connectCtx); err != nil {
			slog.Warn("MQTT broker not reachable yet, heartbeats will resume on reconnect", "error", err)
		}
		cancel()
		if err := sched.AddJob(fmt.Sprintf("@every %s", cfg.Heartbeat.Interval), "heartbeat", publisher.Beat); err != nil {
			slog.Error("Failed to schedule heartbeat", "error", err)
		}
	}

	var player chime.Player = chime.Noop{}
	if cfg.Chime.Enabled {
		p, err := chime.New(cfg.Chime.Volume)
		if err != nil {
			slog.Warn("Shutter sound disabled", "error", err)
		} else {
			player = p
		}
	}

	// [6] HTTP server
	router := handlers.NewRouter(handlers.Handlers{
		Camera: &handlers.CameraHandler{
			Source:         source,
			Store:          st,
			Status:         status,
			Chime:          player,
			AcquireTimeout: cfg.Camera.GrabTimeout * 2,
		},
		Audio:  &handlers.AudioHandler{Ring: ring},
		Status: statusHandler,
		System: &handlers.SystemHandler{
			TemplateFS: templateFS,
			DeviceName: cfg.Device.Name,
			Status:     status,
			Restarter:  restarter,
		},
		Serialize: cfg.Server.SerializeRequests,
	})
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start(ctx)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	printStatus(statusHandler.Snapshot())

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err := <-serverErr:
		slog.Error("HTTP server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown failed", "error", err)
	}
	sched.Stop()
	if publisher != nil {
		publisher.Disconnect()
	}
	if err := ring.Close(); err != nil {
		slog.Warn("Failed to stop audio capture", "error", err)
	}
	if err := source.Close(); err != nil {
		slog.Warn("Failed to stop camera", "error", err)
	}
	if err := player.Close(); err != nil {
		slog.Warn("Failed to close audio output", "error", err)
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Error("Failed to shut down telemetry", "error", err)
	}
}

func setupLink(iface string) network.Link {
	if iface == "" {
		detected, err := network.DetectInterface()
		if err != nil {
			slog.Warn("No network interface detected", "error", err)
			return network.StaticLink{}
		}
		iface = detected
	}
	slog.Info("Reporting link state", "interface", iface)
	return network.NewInterfaceLink(iface)
}

func setupCamera(cfg *config.Config, status *device.Status) *camera.FrameSource {
	producer, err := camera.NewProducer(cfg.Camera.Backend)
	if err != nil {
		logger.Fatal("Invalid camera backend", "backend", cfg.Camera.Backend, "error", err)
	}

	power, err := camera.NewPowerLine(cfg.Camera.GPIOChip, cfg.Camera.Pins.PWDN)
	if err != nil {
		slog.Warn("Camera power line unavailable, recovery will skip the power cycle", "pin", cfg.Camera.Pins.PWDN, "error", err)
		power = camera.NoopPowerLine{}
	}

	source := camera.NewFrameSource(producer, status,
		camera.WithRecoveryPolicy(cfg.RecoveryPolicy()),
		camera.WithPowerLine(power),
	)
	if err := source.Initialize(cfg.Camera); err != nil {
		slog.Warn("Continuing without camera", "error", err)
	}
	return source
}

func setupAudio(cfg *config.Config, status *device.Status) *audio.RingBuffer {
	sampler, err := audio.NewSampler(cfg.Audio.Backend, cfg.Audio.Device)
	if err != nil {
		logger.Fatal("Invalid audio backend", "backend", cfg.Audio.Backend, "error", err)
	}

	ring := audio.NewRingBuffer(sampler, status)
	if err := ring.Initialize(cfg.Audio.SampleRate, cfg.Audio.BitDepth, cfg.Audio.Channels); err != nil {
		slog.Warn("Continuing without microphone", "error", err)
	}
	return ring
}

// printStatus dumps the boot status to the console.
func printStatus(s handlers.StatusResponse) {
	slog.Info("System status",
		"wifi_connected", s.WifiConnected,
		"signal_dbm", s.SignalStrength,
		"ip_address", s.IPAddress,
		"camera", s.CameraState,
		"microphone", s.I2SInitialized,
		"boot_id", s.BootID,
	)
}
