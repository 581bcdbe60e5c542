package http

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saker-ai/mixcore/internal/cues"
	"github.com/saker-ai/mixcore/internal/group"
	"github.com/saker-ai/mixcore/internal/monitor"
	"github.com/saker-ai/mixcore/internal/storage"
	"github.com/saker-ai/mixcore/pkg/engine"
)

// Owner is the registry owner of sounds started over REST.
const Owner = "http"

// Mixer is the part of engine.Facade the REST API drives.
type Mixer interface {
	Play(clip engine.Clip, opts engine.PlayOptions) *engine.Handle
	Stats() engine.Stats
	Playing() []engine.ID
	StopAll()
	SetMasterGain(g float32)
	SetListener(l engine.Listener)
}

// Deps are the services the router exposes. Monitor may be nil when the
// websocket monitor is disabled and CaptureDir empty when not capturing.
type Deps struct {
	Mixer      Mixer
	Bank       *cues.Bank
	Registry   *group.Manager
	Monitor    *monitor.Handler
	CaptureDir string
}

type playRequest struct {
	Gain *float32 `json:"gain"`
	Pan  *float32 `json:"pan"`
	Loop *bool    `json:"loop"`
}

type gainRequest struct {
	Gain *float32 `json:"gain" binding:"required"`
}

type vector struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

type listenerRequest struct {
	Position vector  `json:"position"`
	Right    *vector `json:"right"`
}

// NewRouter builds the control API.
func NewRouter(deps Deps, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/stats", func(c *gin.Context) {
		sessions := 0
		if deps.Monitor != nil {
			sessions = deps.Monitor.Sessions()
		}
		c.JSON(http.StatusOK, gin.H{
			"stats":    deps.Mixer.Stats(),
			"playing":  deps.Mixer.Playing(),
			"handles":  deps.Registry.Len(),
			"sessions": sessions,
		})
	})

	router.GET("/cues", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"cues": deps.Bank.List()})
	})

	router.POST("/cues/:name/play", func(c *gin.Context) {
		var req playRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
		name := c.Param("name")
		clip, opts, err := deps.Bank.Prepare(name, cues.Overrides{Gain: req.Gain, Pan: req.Pan, Loop: req.Loop})
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, cues.ErrUnknownCue) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		handle := deps.Mixer.Play(clip, opts)
		deps.Registry.Register(Owner, handle)
		c.JSON(http.StatusCreated, gin.H{"cue": name, "handle": handle.ID()})
	})

	router.POST("/handles/:id/stop", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		if !deps.Registry.Release(id) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown handle"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"stopped": id})
	})

	router.POST("/handles/:id/gain", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		var req gainRequest
		if err := c.ShouldBindJSON(&req); err != nil || *req.Gain < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "gain must be zero or positive"})
			return
		}
		handle, _, found := deps.Registry.Lookup(id)
		eh, isEngine := handle.(*engine.Handle)
		if !found || !isEngine {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown handle"})
			return
		}
		eh.SetGain(*req.Gain)
		c.Status(http.StatusNoContent)
	})

	router.POST("/stop-all", func(c *gin.Context) {
		deps.Mixer.StopAll()
		c.Status(http.StatusNoContent)
	})

	router.PUT("/master", func(c *gin.Context) {
		var req gainRequest
		if err := c.ShouldBindJSON(&req); err != nil || *req.Gain < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "gain must be zero or positive"})
			return
		}
		deps.Mixer.SetMasterGain(*req.Gain)
		c.Status(http.StatusNoContent)
	})

	router.PUT("/listener", func(c *gin.Context) {
		var req listenerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		l := engine.DefaultListener()
		l.Position = engine.Vector3{X: req.Position.X, Y: req.Position.Y, Z: req.Position.Z}
		if req.Right != nil {
			right := engine.Vector3{X: req.Right.X, Y: req.Right.Y, Z: req.Right.Z}
			if right.Length() == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "right must be non-zero"})
				return
			}
			l.Right = right
		}
		deps.Mixer.SetListener(l)
		c.Status(http.StatusNoContent)
	})

	if deps.CaptureDir != "" {
		mountCaptures(router, deps.CaptureDir)
	}

	if deps.Monitor != nil {
		router.GET("/monitor", func(c *gin.Context) {
			deps.Monitor.Handle(c.Writer, c.Request)
		})
	}

	return router
}

func mountCaptures(router *gin.Engine, dir string) {
	router.GET("/captures", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"captures": storage.ListCaptures(dir)})
	})
	router.GET("/captures/:name", func(c *gin.Context) {
		path, err := storage.CapturePath(dir, c.Param("name"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if _, err := os.Stat(path); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "capture not found"})
			return
		}
		c.FileAttachment(path, c.Param("name")+".wav")
	})
	router.DELETE("/captures/:name", func(c *gin.Context) {
		if !storage.DeleteCapture(dir, c.Param("name")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "capture not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func parseID(c *gin.Context) (engine.ID, bool) {
	v, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || v == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid handle id"})
		return 0, false
	}
	return engine.ID(v), true
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		if logger == nil {
			return
		}
		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", latency),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
