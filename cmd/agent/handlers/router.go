package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/wachiwi/diary-cam/cmd/agent/middleware"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Camera *CameraHandler
	Audio  *AudioHandler
	Status *StatusHandler
	System *SystemHandler
	// Serialize runs requests one at a time.
	Serialize bool
}

// NewRouter maps each path to exactly one handler. Anything else, with any
// method, gets the plain text 404.
func NewRouter(h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Observe())
	if h.Serialize {
		router.Use(middleware.Serialize())
	}

	router.GET("/", h.System.Index)
	router.GET("/video.jpg", h.Camera.VideoJPEG)
	router.GET("/capture", h.Camera.Capture)
	router.GET("/save", h.Camera.Save)
	router.GET("/saved_photo", h.Camera.SavedPhoto)
	router.GET("/audio", h.Audio.Latest)
	router.GET("/status", h.Status.Get)
	router.GET("/checkpoints", h.Status.Checkpoints)
	router.GET("/restart", h.System.Restart)

	router.NoRoute(h.System.NotFound)
	return router
}
