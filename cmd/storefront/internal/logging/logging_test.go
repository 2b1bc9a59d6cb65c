package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.LogConfig
		debug bool
		want  logrus.Level
	}{
		{name: "default", cfg: config.LogConfig{}, want: logrus.InfoLevel},
		{name: "warn", cfg: config.LogConfig{Level: "warn"}, want: logrus.WarnLevel},
		{name: "debug flag raises level", cfg: config.LogConfig{Level: "error"}, debug: true, want: logrus.DebugLevel},
		{name: "debug flag keeps trace", cfg: config.LogConfig{Level: "trace"}, debug: true, want: logrus.TraceLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg, tt.debug)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, false)
	require.Error(t, err)

	_, err = New(config.LogConfig{Format: "xml"}, false)
	require.Error(t, err)
}

func TestComponent_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithOutput(config.LogConfig{Format: "json"}, false, &buf)
	require.NoError(t, err)

	Component(logger, "rolesync").WithField("user_id", "u-1").Info("reconciled")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rolesync", entry["component"])
	assert.Equal(t, "u-1", entry["user_id"])
	assert.Equal(t, "reconciled", entry["msg"])
}
