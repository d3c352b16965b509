// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/ZSC714725/pairview/internal/decoder"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newProbeCommand(opts *rootOptions) *cobra.Command {
	var toolchain bool
	cmd := &cobra.Command{
		Use:   "probe <path>...",
		Short: "Check that sources can be opened and report their length",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			newDecoder, err := newDecoderFactory(cfg)
			if err != nil {
				return err
			}
			if toolchain {
				tc, err := decoder.DetectToolchain(cmd.Context(), cfg.FFmpeg.Path)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s ffmpeg: %v\n", color.New(color.FgRed).Sprint("FAILED"), err)
				} else {
					printToolchain(cmd.OutOrStdout(), tc)
				}
			}
			if failed := probe(cmd.OutOrStdout(), newDecoder, args); failed > 0 {
				return fmt.Errorf("%d of %d sources failed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&toolchain, "toolchain", false, "Also report the ffmpeg version and decoders")
	return cmd
}

func printToolchain(w io.Writer, tc *decoder.Toolchain) {
	fmt.Fprintf(w, "%s ffmpeg %s (%s)\n", color.New(color.FgGreen).Sprint("OK"), tc.Version, tc.Binary)
	fmt.Fprintf(w, "  video decoders: %d\n", len(tc.VideoDecoders))
	if len(tc.HWAccels) > 0 {
		fmt.Fprintf(w, "  hwaccels: %s\n", strings.Join(tc.HWAccels, ", "))
	}
}

func probe(w io.Writer, newDecoder func() decoder.Decoder, paths []string) int {
	failed := 0
	for _, path := range paths {
		dec := newDecoder()
		n, err := dec.Open(path)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: %v\n", color.New(color.FgRed).Sprint("FAILED"), path, err)
			continue
		}
		frame, err := dec.ReadFrame(0)
		_ = dec.Close()
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s %s: first frame: %v\n", color.New(color.FgRed).Sprint("FAILED"), path, err)
			continue
		}
		fmt.Fprintf(w, "%s %s: %d frames, %dx%d\n", color.New(color.FgGreen).Sprint("OK"), path, n, frame.Width, frame.Height)
	}
	return failed
}
