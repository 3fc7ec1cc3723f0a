package log_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zephray/XserveFanSpeedController/pkg/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	ctx := log.IntoContext(context.Background(), zap.New(core))

	log.FromContext(ctx).Info("hello")
	log.FromContext(log.Named(ctx, "bus", zap.Int("bus", 1))).Debug("edge")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].Message)
	assert.Equal(t, "bus", entries[1].LoggerName)
	assert.Equal(t, int64(1), entries[1].ContextMap()["bus"])
}

func TestFromContextFallback(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, log.FromContext(context.Background()))
}

func TestNew(t *testing.T) {
	t.Parallel()

	for _, format := range []string{"", "console", "json"} {
		logger, err := log.New(format, true)
		require.NoError(t, err, format)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}

	logger, err := log.New("json", false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))

	_, err = log.New("xml", false)
	assert.Error(t, err)
}
