package handlers

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/diary-cam/pkg/device"
	"github.com/wachiwi/diary-cam/pkg/system"
)

type SystemHandler struct {
	TemplateFS fs.FS
	DeviceName string
	Status     *device.Status
	Restarter  system.Restarter
	// RestartDelay defaults to system.RestartDelay.
	RestartDelay time.Duration
}

func (h *SystemHandler) Index(c *gin.Context) {
	tmpl, err := template.ParseFS(h.TemplateFS, "templates/index.html")
	if err != nil {
		slog.Error("Failed to parse template", "error", err)
		c.String(http.StatusInternalServerError, "Failed to render page")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := tmpl.Execute(c.Writer, gin.H{"device": h.DeviceName}); err != nil {
		slog.Error("Template execution error", "error", err)
	}
}

// Restart answers first and restarts after the delay.
func (h *SystemHandler) Restart(c *gin.Context) {
	delay := h.RestartDelay
	if delay <= 0 {
		delay = system.RestartDelay
	}
	h.Status.Record("restart_requested", c.ClientIP())
	slog.Warn("Restart requested", "client", c.ClientIP(), "delay", delay)

	c.String(http.StatusOK, "Device restarting...")
	system.Schedule(h.Restarter, delay)
}

func (h *SystemHandler) NotFound(c *gin.Context) {
	c.String(http.StatusNotFound, "404 - Page not found")
}
