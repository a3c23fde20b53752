package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/citydesk/emergency-portal/internal/config"
)

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LoggerConfig
		debugOn  bool
		warnOnly bool
	}{
		{"debug json", config.LoggerConfig{Level: "DEBUG", Encoding: "json"}, true, false},
		{"unknown level falls back to info", config.LoggerConfig{Level: "loud", Encoding: "xml"}, false, false},
		{"warn console development", config.LoggerConfig{Level: "warn", Encoding: "console", Development: true}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.debugOn, logger.Core().Enabled(zapcore.DebugLevel))
			assert.Equal(t, !tt.warnOnly, logger.Core().Enabled(zapcore.InfoLevel))
			assert.True(t, logger.Core().Enabled(zapcore.WarnLevel))
		})
	}
}
