// Package server exposes the log hub over HTTP: a server-sent event stream of log lines,
// the retained history and a health endpoint.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/tts-console/internal/hub"
	"github.com/charmbracelet/log"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Routes.
const (
	routeLogs        = "/api/logs"
	routeLogsHistory = "/api/logs/history"
	routeHealth      = "/health"
)

// HTTP headers.
const (
	headerContentType     = "Content-Type"
	headerCacheControl    = "Cache-Control"
	headerConnection      = "Connection"
	headerAccelBuffering  = "X-Accel-Buffering"
	contentTypeSSE        = "text/event-stream"
	sseEventMessage       = "message"
	defaultKeepAliveAfter = 15 * time.Second
	corsMaxAge            = 12 * time.Hour
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryResponse lists the retained log lines, oldest first.
type HistoryResponse struct {
	Lines []string  `json:"lines"`
	Stats hub.Stats `json:"stats"`
}

// Server serves a hub over HTTP.
type Server struct {
	hub            *hub.Hub
	log            *log.Logger
	keepAlive      time.Duration
	allowedOrigins []string
}

// New creates a Server for logHub.
func New(logHub *hub.Hub, logger *log.Logger) *Server {
	return &Server{
		hub:            logHub,
		log:            logger,
		keepAlive:      defaultKeepAliveAfter,
		allowedOrigins: nil,
	}
}

// WithKeepAlive sets the interval of keep-alive comments on idle streams.
func (s *Server) WithKeepAlive(interval time.Duration) *Server {
	s.keepAlive = interval

	return s
}

// WithAllowedOrigins lets browser pages from origins read the stream. "*" allows any origin.
func (s *Server) WithAllowedOrigins(origins []string) *Server {
	s.allowedOrigins = origins

	return s
}

// Router builds the gin engine. Request logs are written to accessLog.
func (s *Server) Router(accessLog io.Writer) *gin.Engine {
	router := gin.New()
	router.Use(gin.LoggerWithWriter(accessLog), gin.CustomRecovery(s.recoverPanic))

	if len(s.allowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:  s.allowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodOptions},
			AllowHeaders:  []string{"Origin", "Accept", headerCacheControl, "Last-Event-ID"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        corsMaxAge,
		}))
	}

	router.GET(routeLogs, s.streamLogs)
	router.GET(routeLogsHistory, s.history)
	router.GET(routeHealth, s.health)

	return router
}

// streamLogs replays the history and then pushes every new line as a `data:` event whose
// payload is the JSON-encoded line, until the client disconnects.
func (s *Server) streamLogs(c *gin.Context) {
	history, lines, cancel := s.hub.Subscribe()
	defer cancel()

	s.log.Debug("Log stream client connected", "remote", c.ClientIP(), "history", len(history))

	c.Header(headerContentType, contentTypeSSE)
	c.Header(headerCacheControl, "no-cache")
	c.Header(headerConnection, "keep-alive")
	c.Header(headerAccelBuffering, "no")
	c.Status(http.StatusOK)

	for _, line := range history {
		err := s.sendLine(c, line)
		if err != nil {
			s.log.Warn("Failed to replay log history", "err", err)

			return
		}
	}

	c.Writer.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case line, ok := <-lines:
			if !ok {
				return false
			}

			err := s.sendLine(c, line)
			if err != nil {
				s.log.Warn("Failed to send log line", "err", err)

				return false
			}

			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keep-alive\n\n")

			return err == nil
		}
	})

	s.log.Debug("Log stream client disconnected", "remote", c.ClientIP())
}

func (s *Server) sendLine(c *gin.Context, line string) error {
	payload, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to encode log line: %w", err)
	}

	c.SSEvent(sseEventMessage, string(payload))

	return nil
}

func (s *Server) history(c *gin.Context) {
	c.JSON(http.StatusOK, HistoryResponse{
		Lines: s.hub.History(),
		Stats: s.hub.Stats(),
	})
}

func (s *Server) recoverPanic(c *gin.Context, recovered any) {
	s.log.Error("Recovered from panic", "path", c.Request.URL.Path, "panic", recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
