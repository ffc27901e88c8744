package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/kitsutliff/depindex/internal/config"
)

func TestNewLogger_ValidLevels(t *testing.T) {
	for _, level := range []string{"DEBUG", "INFO", "WARN", "ERROR"} {
		log := newLogger(level)
		require.NotNil(t, log)
		assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
	}
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	log := newLogger("not-a-level")
	require.NotNil(t, log)
	assert.True(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestOpenStore_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.Variant = config.VariantMemory
	cfg.IndexDir = ""

	st, err := openStore(cfg, newLogger("ERROR"))
	require.NoError(t, err)
	require.NotNil(t, st)

	assert.True(t, st.Index("base", nil))
	assert.True(t, st.Query("base"))
}

func TestOpenStore_Filesystem(t *testing.T) {
	cfg := config.Defaults()
	cfg.Variant = config.VariantFilesystem
	cfg.IndexDir = t.TempDir()

	st, err := openStore(cfg, newLogger("ERROR"))
	require.NoError(t, err)
	require.NotNil(t, st)

	assert.True(t, st.Index("base", nil))
	assert.True(t, st.Query("base"))
}

func TestOpenStore_UnknownVariant(t *testing.T) {
	cfg := config.Defaults()
	cfg.Variant = config.StoreVariant("made-up")

	_, err := openStore(cfg, newLogger("ERROR"))
	assert.Error(t, err)
}
