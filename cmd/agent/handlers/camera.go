package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/diary-cam/pkg/camera"
	"github.com/wachiwi/diary-cam/pkg/chime"
	"github.com/wachiwi/diary-cam/pkg/device"
	"github.com/wachiwi/diary-cam/pkg/store"
)

// FrameAcquirer hands out exclusive frame handles.
type FrameAcquirer interface {
	Acquire(ctx context.Context) (*camera.Handle, error)
}

type CameraHandler struct {
	Source FrameAcquirer
	Store  store.Store
	Status *device.Status
	Chime  chime.Player
	// AcquireTimeout bounds the wait for the frame buffer slot.
	AcquireTimeout time.Duration
}

func (h *CameraHandler) acquire(c *gin.Context) (*camera.Handle, bool) {
	timeout := h.AcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	handle, err := h.Source.Acquire(ctx)
	if err == nil {
		return handle, true
	}

	if errors.Is(err, camera.ErrNotInitialized) {
		acquireFailures.Add(c.Request.Context(), 1, reasonNotInitialized)
		c.String(http.StatusServiceUnavailable, "Camera not initialized")
		return nil, false
	}
	acquireFailures.Add(c.Request.Context(), 1, reasonCapture)
	slog.Error("Frame acquire failed", "path", c.Request.URL.Path, "error", err)
	c.String(http.StatusServiceUnavailable, "Camera capture failed")
	return nil, false
}

// VideoJPEG serves one live frame.
func (h *CameraHandler) VideoJPEG(c *gin.Context) {
	handle, ok := h.acquire(c)
	if !ok {
		return
	}
	defer handle.Release()

	f := handle.Frame()
	c.Header("Cache-Control", "no-cache")
	c.Header("Content-Length", strconv.Itoa(f.Len()))
	c.Data(http.StatusOK, "image/jpeg", f.Data)

	n := h.Status.IncFrameCount()
	framesServed.Add(c.Request.Context(), 1)
	slog.Debug("Frame sent", "bytes", f.Len(), "width", f.Width, "height", f.Height, "total", n)
}

// Capture grabs a frame and persists it as the saved photo.
func (h *CameraHandler) Capture(c *gin.Context) {
	handle, ok := h.acquire(c)
	if !ok {
		return
	}
	defer handle.Release()

	f := handle.Frame()
	if err := h.Store.Put(store.PhotoName, f.Data); err != nil {
		slog.Error("Failed to save photo", "error", err)
		h.Status.Record("photo_save_failed", err.Error())
		c.String(http.StatusServiceUnavailable, "Failed to save photo")
		return
	}

	photosPersisted.Add(c.Request.Context(), 1)
	h.Status.Record("photo_captured", strconv.Itoa(f.Len())+" bytes")
	slog.Info("Photo captured", "bytes", f.Len())
	if h.Chime != nil {
		h.Chime.Play()
	}
	c.String(http.StatusOK, "Photo captured")
}

// Save acknowledges a request to copy the photo to secondary storage.
// There is no secondary storage on this device yet.
func (h *CameraHandler) Save(c *gin.Context) {
	slog.Info("Photo save requested")
	c.String(http.StatusOK, "Photo saved to SD card")
}

// SavedPhoto serves the last captured photo.
func (h *CameraHandler) SavedPhoto(c *gin.Context) {
	data, err := h.Store.Get(store.PhotoName)
	if errors.Is(err, store.ErrNotFound) {
		c.String(http.StatusNotFound, "Photo not found")
		return
	}
	if err != nil {
		slog.Error("Failed to read photo", "error", err)
		c.String(http.StatusInternalServerError, "Failed to read photo")
		return
	}
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, "image/jpeg", data)
}
