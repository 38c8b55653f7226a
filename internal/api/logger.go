package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ytransit-data/internal/common/logger"
)

// NewLogger logs one line per request. Client errors log at warn, server
// errors at error.
func NewLogger(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		startTime := time.Now()
		err = c.Next()

		msg := "HTTP Request"
		if err != nil {
			msg = err.Error()
		}

		code := c.Response().StatusCode()

		fields := []interface{}{
			"status", code,
			"method", c.Method(),
			"path", c.Path(),
			"ip", c.IP(),
			"latency", time.Since(startTime).String(),
			"user-agent", c.Get(fiber.HeaderUserAgent),
		}

		switch {
		case code >= fiber.StatusBadRequest && code < fiber.StatusInternalServerError:
			log.Warn(msg, fields...)
		case code >= fiber.StatusInternalServerError:
			log.Error(msg, fields...)
		default:
			log.Info(msg, fields...)
		}

		return err
	}
}
