// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesAndFills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairview.yaml")
	data := `
server:
  bind: "127.0.0.1:9000"
engine:
  isolation: local
  poll_interval_ms: 10
view:
  mode: sbs
  font_location: [0.5, 0.5]
metrics:
  file: /tmp/vqmt.json
  enabled: [psnr_y]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Bind)
	assert.Equal(t, "ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.FFprobe)
	assert.Equal(t, IsolationLocal, cfg.Engine.Isolation)
	assert.Equal(t, 10*time.Millisecond, cfg.Engine.PollInterval())
	assert.Equal(t, 100, cfg.Engine.BootstrapAttempts)
	assert.Equal(t, "sbs", cfg.View.Mode)
	assert.Equal(t, [2]float64{0.5, 0.5}, cfg.View.FontLocation)
	assert.Equal(t, []string{"psnr_y"}, cfg.Metrics.Enabled)
}

func TestLoad_InvalidIsolation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  isolation: thread\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "engine.isolation")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
