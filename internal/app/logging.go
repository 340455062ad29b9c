package app

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ParseLogLevel accepts slog level names ("debug", "info", "warn"/"warning",
// "error") or a numeric level. Empty means info.
func ParseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(value, "warning") {
		value = "warn"
	}
	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// NewLogger returns a JSON logger for production and a text logger otherwise.
func NewLogger(w io.Writer, level slog.Level, env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if env == "prod" || env == "production" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// requestLogger logs one line per request. Errors attached by handlers are
// logged with server failures.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= 500:
			if len(c.Errors) > 0 {
				attrs = append(attrs, "err", c.Errors.String())
			}
			log.ErrorContext(c.Request.Context(), "request failed", attrs...)
		case status >= 400:
			log.InfoContext(c.Request.Context(), "request rejected", attrs...)
		default:
			log.DebugContext(c.Request.Context(), "request", attrs...)
		}
	}
}
