// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package decoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// Library is one av library ffmpeg was built against
type Library struct {
	Name     string `json:"name"`
	Compiled string `json:"compiled"`
	Linked   string `json:"linked"`
}

// Toolchain describes the installed ffmpeg as far as decoding goes
type Toolchain struct {
	Binary        string    `json:"binary"`
	Version       string    `json:"version"`
	Libraries     []Library `json:"libraries"`
	VideoDecoders []string  `json:"video_decoders"`
	HWAccels      []string  `json:"hwaccels"`
}

var (
	reVersion = regexp.MustCompile(`^ffmpeg version ([0-9]+\.[0-9]+(\.[0-9]+)?)`)
	reLibrary = regexp.MustCompile(`(?m)^\s*(lib(?:[a-z]+))\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+) /\s+([0-9]+\.\s*[0-9]+\.\s*[0-9]+)`)
	reCodec   = regexp.MustCompile(`^\s([D.])[E.]([VAS]).{3} ([0-9A-Za-z_]+)\s+(.*?)(?:\(decoders:([^\)]+)\))?\s?(?:\(encoders:[^\)]+\))?$`)
	reAccel   = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// DetectToolchain runs the ffmpeg binary to learn its version, video
// decoders and hardware accelerators
func DetectToolchain(ctx context.Context, binary string) (*Toolchain, error) {
	out, err := run(ctx, binary, "-version")
	if err != nil {
		return nil, fmt.Errorf("%s -version: %w", binary, err)
	}
	tc := &Toolchain{Binary: binary}
	parseVersion(tc, out)
	if tc.Version == "" {
		return nil, fmt.Errorf("can't parse %s version", binary)
	}

	// both listings are optional extras
	if out, err := run(ctx, binary, "-codecs"); err == nil {
		tc.VideoDecoders = parseVideoDecoders(out)
	}
	if out, err := run(ctx, binary, "-hwaccels"); err == nil {
		tc.HWAccels = parseHWAccels(out)
	}
	return tc, nil
}

// CanDecode reports whether a video decoder named name is available
func (t *Toolchain) CanDecode(name string) bool {
	for _, d := range t.VideoDecoders {
		if d == name {
			return true
		}
	}
	return false
}

func run(ctx context.Context, binary string, arg string) ([]byte, error) {
	args := []string{arg}
	if arg != "-version" {
		args = []string{"-hide_banner", arg}
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Env = []string{}
	return cmd.Output()
}

func parseVersion(tc *Toolchain, data []byte) {
	if m := reVersion.FindSubmatch(data); m != nil {
		tc.Version = string(m[1])
		if len(m[2]) == 0 {
			tc.Version += ".0"
		}
	}
	for _, m := range reLibrary.FindAllSubmatch(data, -1) {
		tc.Libraries = append(tc.Libraries, Library{
			Name:     string(m[1]),
			Compiled: string(m[2]),
			Linked:   string(m[3]),
		})
	}
}

// parseVideoDecoders lists the decoder names of every decodable video
// codec in `ffmpeg -codecs` output
func parseVideoDecoders(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		m := reCodec.FindStringSubmatch(scanner.Text())
		if m == nil || m[1] != "D" || m[2] != "V" {
			continue
		}
		if m[5] == "" {
			out = append(out, m[3])
			continue
		}
		out = append(out, strings.Fields(m[5])...)
	}
	return out
}

func parseHWAccels(data []byte) []string {
	var out []string
	start := false
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "Hardware acceleration methods:" {
			start = true
			continue
		}
		if start && reAccel.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}
