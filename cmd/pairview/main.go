// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package main

import (
	"fmt"
	"os"

	"github.com/ZSC714725/pairview/internal/config"
	"github.com/ZSC714725/pairview/internal/decoder"

	"github.com/spf13/cobra"
)

// rootOptions are the flags shared by all subcommands
type rootOptions struct {
	ConfigPath string
	FFmpeg     string
	FFprobe    string
	Verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "pairview",
		Short:         "Play two videos side by side, frame-synchronized",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.FFmpeg, "ffmpeg", "", "FFmpeg binary path (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.FFprobe, "ffprobe", "", "FFprobe binary path (overrides config)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log debug lines")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newProbeCommand(opts))
	cmd.AddCommand(newWorkerCommand(opts))
	return cmd
}

// load reads the config file, if any, and applies the flag overrides
func (o *rootOptions) load() (*config.Config, error) {
	cfg := config.Default()
	if o.ConfigPath != "" {
		var err error
		if cfg, err = config.Load(o.ConfigPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if o.FFmpeg != "" {
		cfg.FFmpeg.Path = o.FFmpeg
	}
	if o.FFprobe != "" {
		cfg.FFmpeg.FFprobe = o.FFprobe
	}
	return cfg, nil
}

// workerArgs are the arguments a spawned worker process needs to build
// the same decoder as this process
func (o *rootOptions) workerArgs(cfg *config.Config) []string {
	args := []string{"worker", "--ffmpeg", cfg.FFmpeg.Path, "--ffprobe", cfg.FFmpeg.FFprobe}
	if o.ConfigPath != "" {
		args = append(args, "--config", o.ConfigPath)
	}
	if o.Verbose {
		args = append(args, "--verbose")
	}
	return args
}

func newDecoderFactory(cfg *config.Config) (func() decoder.Decoder, error) {
	v, err := decoder.NewValidator(cfg.FFmpeg.Allow, cfg.FFmpeg.Block)
	if err != nil {
		return nil, err
	}
	dc := decoder.Config{FFmpeg: decoder.FFmpegConfig{
		FFmpeg:    cfg.FFmpeg.Path,
		FFprobe:   cfg.FFmpeg.FFprobe,
		Validator: v,
	}}
	return func() decoder.Decoder { return decoder.New(dc) }, nil
}
