package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ptvtracker-planner/internal/common/logger"
)

func requestLogger(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		startTime := time.Now()
		err := c.Next()
		if err != nil {
			// let the error handler set the final status before logging it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

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

		return nil
	}
}
