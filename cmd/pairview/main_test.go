// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZSC714725/pairview/internal/config"
	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	failed := probe(&buf, decoder.NewSynthetic, []string{
		"synthetic:?frames=12&width=32&height=16",
		"synthetic:?frames=0",
	})
	assert.Equal(t, 1, failed)
	out := buf.String()
	assert.Contains(t, out, "OK synthetic:?frames=12&width=32&height=16: 12 frames, 32x16")
	assert.Contains(t, out, "FAILED synthetic:?frames=0")
}

func TestRootOptions_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairview.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  isolation: local\nffmpeg:\n  path: /opt/ffmpeg\n"), 0o644))

	opts := &rootOptions{ConfigPath: path, FFprobe: "/usr/local/bin/ffprobe"}
	cfg, err := opts.load()
	require.NoError(t, err)
	assert.Equal(t, config.IsolationLocal, cfg.Engine.Isolation)
	assert.Equal(t, "/opt/ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, "/usr/local/bin/ffprobe", cfg.FFmpeg.FFprobe)

	assert.Equal(t, []string{
		"worker", "--ffmpeg", "/opt/ffmpeg", "--ffprobe", "/usr/local/bin/ffprobe", "--config", path,
	}, opts.workerArgs(cfg))
}

func TestNewSpawner(t *testing.T) {
	opts := &rootOptions{}
	cfg := config.Default()

	s, err := newSpawner(opts, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &worker.ProcessSpawner{}, s)

	cfg.Engine.Isolation = config.IsolationLocal
	s, err = newSpawner(opts, cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &worker.LocalSpawner{}, s)

	cfg.FFmpeg.Block = []string{"("}
	_, err = newSpawner(opts, cfg, nil)
	assert.Error(t, err)
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"serve", "probe", "worker"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestPrintToolchain(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printToolchain(&buf, &decoder.Toolchain{
		Binary:        "/usr/bin/ffmpeg",
		Version:       "6.1.0",
		VideoDecoders: []string{"h264", "hevc"},
		HWAccels:      []string{"cuda", "vaapi"},
	})
	assert.Equal(t, "OK ffmpeg 6.1.0 (/usr/bin/ffmpeg)\n  video decoders: 2\n  hwaccels: cuda, vaapi\n", buf.String())
}
