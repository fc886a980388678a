package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"legis/metrics"
)

const requestIDHeader = "X-Request-ID"

// WithLogging tags every request with an id, logs its outcome and records
// it in m. m may be nil.
func WithLogging(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)

		err := c.Next()
		if err != nil {
			// render now so the logged status is the one sent
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		route := c.Route().Path
		took := time.Since(start)

		slog.Info("request",
			"request_id", reqID,
			"method", c.Method(),
			"route", route,
			"status", status,
			"took", took,
		)
		if m != nil {
			m.RequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(c.Method(), route).Observe(took.Seconds())
		}
		return nil
	}
}
