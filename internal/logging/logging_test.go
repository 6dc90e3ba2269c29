package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Config{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "key=value")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Config{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Debug("cycle", "pushed", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "cycle", entry["msg"])
	assert.Equal(t, float64(3), entry["pushed"])
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shelfsync.log")
	var buf bytes.Buffer

	logger, closer, err := New(Config{File: path, MaxSizeMB: 1}, &buf)
	require.NoError(t, err)
	logger.Info("to file")
	require.NoError(t, closer.Close())

	assert.Zero(t, buf.Len())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults", cfg: Config{}},
		{name: "json debug", cfg: Config{Level: "DEBUG", Format: "json"}},
		{name: "bad level", cfg: Config{Level: "verbose"}, wantErr: true},
		{name: "bad format", cfg: Config{Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, _, err := New(Config{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
