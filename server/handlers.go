package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"kahaani/pipeline"
)

const (
	msgNotConfigured    = "Service not configured"
	msgGenerationFailed = "Script generation failed. Please try again."
	msgPostOnly         = "POST only"
	msgMethodNotAllowed = "method not allowed"
)

// maxBodyBytes bounds the request body; anything larger is read as defaults.
const maxBodyBytes = 64 << 10

func errorBody(msg string) gin.H {
	return gin.H{"error": msg}
}

func methodNotAllowed(c *gin.Context) {
	msg := msgMethodNotAllowed
	if c.Request.URL.Path == GeneratePath {
		msg = msgPostOnly
	}
	c.JSON(http.StatusMethodNotAllowed, errorBody(msg))
}

func (s *Server) generate(c *gin.Context) {
	if !s.cfg.Configured() {
		s.logger.Error("generation requested without an API key")
		c.JSON(http.StatusServiceUnavailable, errorBody(msgNotConfigured))
		return
	}

	body, _ := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	req := pipeline.ParseRequest(body)

	ctx := c.Request.Context()
	if t := s.cfg.Server.RequestTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	resp, err := s.generator.Generate(ctx, req)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, errorBody(msgNotConfigured))
			return
		}
		attrs := []any{"error", err, "mode", req.Mode, "language", req.Language}
		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			attrs = append(attrs, "stage", stageErr.State.String())
		}
		s.logger.Error("generation failed", attrs...)
		c.JSON(http.StatusInternalServerError, errorBody(msgGenerationFailed))
		return
	}
	c.JSON(http.StatusOK, resp)
}

type healthChecks struct {
	OpenAIKeyConfigured bool   `json:"openai_key_configured"`
	Env                 string `json:"env"`
}

type healthResponse struct {
	Status        string       `json:"status"`
	Service       string       `json:"service"`
	Timestamp     time.Time    `json:"timestamp"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Checks        healthChecks `json:"checks"`
}

func (s *Server) health(c *gin.Context) {
	now := s.now()
	configured := s.cfg.Configured()

	status, code := "ok", http.StatusOK
	if !configured {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(code, healthResponse{
		Status:        status,
		Service:       pipeline.ProductName,
		Timestamp:     now.UTC().Truncate(time.Millisecond),
		Version:       s.version,
		UptimeSeconds: int64(now.Sub(s.started).Seconds()),
		Checks: healthChecks{
			OpenAIKeyConfigured: configured,
			Env:                 s.cfg.Env,
		},
	})
}
