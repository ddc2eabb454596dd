package http

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"gousers/pkg/logger"
)

const (
	logRequestCompleted = "Request completed"
	logRequestFailed    = "Request failed"
	logServerPanic      = "Server panic"
	logPanicResponse    = "Failed to send error response after panic"
)

// NewLoggerMiddleware создает промежуточное ПО для логирования запросов.
func NewLoggerMiddleware(baseCtx context.Context) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		start := time.Now()

		log := logger.Log(baseCtx).With(
			zap.String("path", ctx.Path()),
			zap.String("method", ctx.Method()),
			zap.String("ip", ctx.IP()),
		)

		err := ctx.Next()

		logFields := []zap.Field{
			zap.Int("status", ctx.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)),
		}

		if err != nil {
			log.Error(baseCtx, logRequestFailed, append(logFields, zap.Error(err))...)
			return fmt.Errorf("request processing error: %w", err)
		}

		log.Debug(baseCtx, logRequestCompleted, logFields...)
		return nil
	}
}

// NewRecoveryMiddleware создает промежуточное ПО для восстановления после паники.
func NewRecoveryMiddleware(baseCtx context.Context) fiber.Handler {
	return func(ctx fiber.Ctx) error {
		log := logger.Log(baseCtx)

		defer func() {
			if r := recover(); r != nil {
				log.Error(baseCtx, logServerPanic,
					zap.String("error", fmt.Sprintf("%v", r)),
					zap.String("stack", string(debug.Stack())),
				)

				if err := ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Internal Server Error",
				}); err != nil {
					log.Error(baseCtx, logPanicResponse, zap.Error(err))
				}
			}
		}()

		return ctx.Next()
	}
}
