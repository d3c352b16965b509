// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Engine  EngineConfig  `yaml:"engine"`
	View    ViewConfig    `yaml:"view"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Bind string `yaml:"bind"`
}

// FFmpegConfig FFmpeg 配置
type FFmpegConfig struct {
	Path    string   `yaml:"path"`
	FFprobe string   `yaml:"ffprobe"`
	Allow   []string `yaml:"allow"`
	Block   []string `yaml:"block"`
}

// EngineConfig 解码引擎配置
type EngineConfig struct {
	// Isolation is "process" (one OS process per worker) or "local" (goroutine).
	Isolation          string `yaml:"isolation"`
	PollIntervalMs     int    `yaml:"poll_interval_ms"`
	BootstrapAttempts  int    `yaml:"bootstrap_attempts"`
	QueueSize          int    `yaml:"queue_size"`
	OpenTimeoutSeconds int    `yaml:"open_timeout_seconds"`
}

// ViewConfig 画面合成配置
type ViewConfig struct {
	Mode         string     `yaml:"mode"`
	FontColor    [3]uint8   `yaml:"font_color"`
	FontLocation [2]float64 `yaml:"font_location"`
}

// MetricsConfig VQMT 指标文件
type MetricsConfig struct {
	File    string   `yaml:"file"`
	Enabled []string `yaml:"enabled"`
}

const (
	IsolationProcess = "process"
	IsolationLocal   = "local"
)

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{Bind: ":8080"},
		FFmpeg: FFmpegConfig{Path: "ffmpeg", FFprobe: "ffprobe"},
		Engine: EngineConfig{
			Isolation:          IsolationProcess,
			PollIntervalMs:     50,
			BootstrapAttempts:  100,
			QueueSize:          256,
			OpenTimeoutSeconds: 60,
		},
		View: ViewConfig{
			Mode:         "split",
			FontColor:    [3]uint8{255, 255, 0},
			FontLocation: [2]float64{0.0, 1.0},
		},
	}
}

// Load 从 YAML 文件加载配置
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.fill()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// 填充空值
func (c *Config) fill() {
	def := Default()
	if c.Server.Bind == "" {
		c.Server.Bind = def.Server.Bind
	}
	if c.FFmpeg.Path == "" {
		c.FFmpeg.Path = def.FFmpeg.Path
	}
	if c.FFmpeg.FFprobe == "" {
		c.FFmpeg.FFprobe = def.FFmpeg.FFprobe
	}
	if c.Engine.Isolation == "" {
		c.Engine.Isolation = def.Engine.Isolation
	}
	if c.Engine.PollIntervalMs <= 0 {
		c.Engine.PollIntervalMs = def.Engine.PollIntervalMs
	}
	if c.Engine.BootstrapAttempts <= 0 {
		c.Engine.BootstrapAttempts = def.Engine.BootstrapAttempts
	}
	if c.Engine.QueueSize <= 0 {
		c.Engine.QueueSize = def.Engine.QueueSize
	}
	if c.Engine.OpenTimeoutSeconds <= 0 {
		c.Engine.OpenTimeoutSeconds = def.Engine.OpenTimeoutSeconds
	}
	if c.View.Mode == "" {
		c.View.Mode = def.View.Mode
	}
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	switch c.Engine.Isolation {
	case IsolationProcess, IsolationLocal:
	default:
		return fmt.Errorf("engine.isolation must be %q or %q, got %q", IsolationProcess, IsolationLocal, c.Engine.Isolation)
	}
	for i, v := range c.View.FontLocation {
		if v < 0 || v > 1 {
			return fmt.Errorf("view.font_location[%d] must be within [0, 1], got %v", i, v)
		}
	}
	return nil
}

// PollInterval as a duration
func (e EngineConfig) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalMs) * time.Millisecond
}

// OpenTimeout as a duration
func (e EngineConfig) OpenTimeout() time.Duration {
	return time.Duration(e.OpenTimeoutSeconds) * time.Second
}
