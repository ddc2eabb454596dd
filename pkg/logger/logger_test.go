package logger_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gousers/pkg/logger"
)

const (
	msgLoggerShouldBeCreated  = "logger should be created for any level string"
	msgSameLoggerFromContext  = "context should return the stored logger"
	msgGlobalLoggerReturned   = "Log should fall back to the global logger"
	msgFallbackLoggerReturned = "Log should fall back to the fallback logger"
	msgRequestIDPreserved     = "request ID should be preserved"
	msgRequestIDIsUUID        = "generated request ID should be a valid UUID"
)

func TestNewLogger(t *testing.T) {
	levels := []string{"debug", "info", "warn", "warning", "error", "invalid", ""}

	for _, env := range []logger.Environment{logger.Development, logger.Production} {
		for _, level := range levels {
			t.Run(string(env)+"/level="+level, func(t *testing.T) {
				log, err := logger.NewLogger(env, level)

				require.NoError(t, err, msgLoggerShouldBeCreated)
				require.NotNil(t, log)
			})
		}
	}
}

func TestFromContext(t *testing.T) {
	t.Run("logger stored in context", func(t *testing.T) {
		testLogger, err := logger.NewLogger(logger.Development, "debug")
		require.NoError(t, err)

		ctx := logger.NewContext(context.Background(), testLogger)

		retrieved, err := logger.FromContext(ctx)
		require.NoError(t, err)
		assert.Same(t, testLogger, retrieved, msgSameLoggerFromContext)
	})

	t.Run("no logger in context", func(t *testing.T) {
		retrieved, err := logger.FromContext(context.Background())

		require.ErrorIs(t, err, logger.ErrLoggerNotFound)
		assert.Nil(t, retrieved)
	})
}

func TestLog(t *testing.T) {
	t.Cleanup(func() { logger.SetGlobalLogger(nil) })

	t.Run("fallback logger when nothing configured", func(t *testing.T) {
		logger.SetGlobalLogger(nil)

		assert.NotNil(t, logger.Log(context.Background()), msgFallbackLoggerReturned)
	})

	t.Run("global logger when context is empty", func(t *testing.T) {
		global, err := logger.NewLogger(logger.Production, "info")
		require.NoError(t, err)
		logger.SetGlobalLogger(global)

		assert.Same(t, global, logger.Log(context.Background()), msgGlobalLoggerReturned)
	})

	t.Run("context logger wins over global", func(t *testing.T) {
		global, err := logger.NewLogger(logger.Production, "info")
		require.NoError(t, err)
		logger.SetGlobalLogger(global)

		local, err := logger.NewLogger(logger.Development, "debug")
		require.NoError(t, err)
		ctx := logger.NewContext(context.Background(), local)

		assert.Same(t, local, logger.Log(ctx), msgSameLoggerFromContext)
	})

	t.Run("init global logger only once", func(t *testing.T) {
		logger.SetGlobalLogger(nil)

		require.NoError(t, logger.InitGlobalLoggerWithLevel(logger.Development, "debug"))
		first := logger.Log(context.Background())

		require.NoError(t, logger.InitGlobalLoggerWithLevel(logger.Production, "error"))
		assert.Same(t, first, logger.Log(context.Background()))
	})
}

func TestLoggerMethods(t *testing.T) {
	log, err := logger.NewLogger(logger.Development, "debug")
	require.NoError(t, err)

	ctx := logger.NewRequestIDContext(context.Background(), "test-request-id")

	t.Run("With returns a new instance", func(t *testing.T) {
		child := log.With(zap.String("key", "value"))
		assert.NotSame(t, log, child)
	})

	t.Run("logging does not panic", func(t *testing.T) {
		assert.NotPanics(t, func() {
			log.Debug(ctx, "debug message", zap.Int("count", 1))
			log.Info(ctx, "info message")
			log.Warn(ctx, "warn message")
			log.Error(ctx, "error message")
			log.Info(context.Background(), "plain context message")
		})
	})

	t.Run("WithRequestID", func(t *testing.T) {
		assert.NotSame(t, log, log.WithRequestID(ctx))
		assert.Same(t, log, log.WithRequestID(context.Background()))
	})
}

func TestRequestID(t *testing.T) {
	t.Run("explicit request ID", func(t *testing.T) {
		ctx := logger.NewRequestIDContext(context.Background(), "abc")

		id, ok := logger.GetRequestID(ctx)
		require.True(t, ok)
		assert.Equal(t, "abc", id, msgRequestIDPreserved)
	})

	t.Run("generated request ID", func(t *testing.T) {
		ctx := logger.NewRequestIDContext(context.Background(), "")

		id, ok := logger.GetRequestID(ctx)
		require.True(t, ok)

		_, err := uuid.Parse(id)
		assert.NoError(t, err, msgRequestIDIsUUID)
	})

	t.Run("missing request ID", func(t *testing.T) {
		_, ok := logger.GetRequestID(context.Background())
		assert.False(t, ok)
	})
}
