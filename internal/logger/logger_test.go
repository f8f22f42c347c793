package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"tradeledger/configs"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   configs.LogConfig
		level zapcore.Level
	}{
		{"json debug", configs.LogConfig{Level: "DEBUG", Encoding: "json"}, zapcore.DebugLevel},
		{"console warn", configs.LogConfig{Level: "warn", Encoding: "console"}, zapcore.WarnLevel},
		{"unknown level", configs.LogConfig{Level: "chatty"}, zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			assert.False(t, log.Core().Enabled(tt.level-1))
		})
	}
}
