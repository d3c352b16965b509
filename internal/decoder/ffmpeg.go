// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package decoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FFmpegConfig for the ffmpeg backed decoder
type FFmpegConfig struct {
	FFmpeg      string
	FFprobe     string
	Validator   Validator
	ReadTimeout time.Duration
}

type ffmpegDecoder struct {
	ffmpeg    string
	ffprobe   string
	validator Validator
	timeout   time.Duration

	path    string
	pts     []float64
	encoded Size
	output  Size
}

// NewFFmpeg creates a decoder that shells out to ffprobe for indexing and
// to ffmpeg for each frame. Binaries are resolved on Open so that a
// missing ffmpeg surfaces as an open failure of the worker.
func NewFFmpeg(config FFmpegConfig) Decoder {
	d := &ffmpegDecoder{
		ffmpeg:    config.FFmpeg,
		ffprobe:   config.FFprobe,
		validator: config.Validator,
		timeout:   config.ReadTimeout,
	}
	if d.ffmpeg == "" {
		d.ffmpeg = "ffmpeg"
	}
	if d.ffprobe == "" {
		d.ffprobe = "ffprobe"
	}
	if d.validator == nil {
		d.validator = AllowAll()
	}
	if d.timeout <= 0 {
		d.timeout = 30 * time.Second
	}
	return d
}

type probeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Packets []struct {
		PTSTime string `json:"pts_time"`
	} `json:"packets"`
}

func (d *ffmpegDecoder) Open(path string) (int, error) {
	if !d.validator.IsValid(path) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	ffmpeg, err := exec.LookPath(d.ffmpeg)
	if err != nil {
		return 0, fmt.Errorf("invalid ffmpeg binary: %w", err)
	}
	ffprobe, err := exec.LookPath(d.ffprobe)
	if err != nil {
		return 0, fmt.Errorf("invalid ffprobe binary: %w", err)
	}

	out, err := d.run(ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height:packet=pts_time",
		"-of", "json",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("probe %s: %w", path, err)
	}
	if len(probe.Streams) == 0 || probe.Streams[0].Width <= 0 || probe.Streams[0].Height <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptySource, path)
	}

	pts := make([]float64, 0, len(probe.Packets))
	for _, p := range probe.Packets {
		t, err := strconv.ParseFloat(p.PTSTime, 64)
		if err != nil {
			continue
		}
		pts = append(pts, t)
	}
	if len(pts) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptySource, path)
	}
	// packets come in decode order; presentation order is what we index
	sort.Float64s(pts)

	d.ffmpeg = ffmpeg
	d.ffprobe = ffprobe
	d.path = path
	d.pts = pts
	d.encoded = Size{W: probe.Streams[0].Width, H: probe.Streams[0].Height}
	d.output = d.encoded
	return len(pts), nil
}

func (d *ffmpegDecoder) ReadFrame(index int) (*Frame, error) {
	if d.path == "" {
		return nil, ErrNotOpen
	}
	if index < 0 || index >= len(d.pts) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexRange, index, len(d.pts))
	}

	out, err := d.run(d.ffmpeg,
		"-v", "error",
		"-nostdin",
		"-ss", strconv.FormatFloat(d.pts[index], 'f', 6, 64),
		"-i", d.path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d:flags=fast_bilinear", d.output.W, d.output.H),
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("read frame %d: %w", index, err)
	}

	want := d.output.W * d.output.H * 3
	if len(out) < want {
		return nil, fmt.Errorf("%w: frame %d got %d bytes, want %d", ErrShortRead, index, len(out), want)
	}

	next := index + 1
	if next >= len(d.pts) {
		next = len(d.pts) - 1
	}
	return &Frame{
		Width:      d.output.W,
		Height:     d.output.H,
		Pix:        out[:want],
		DurationMs: frameDurationMs(d.pts[next] - d.pts[index]),
	}, nil
}

func (d *ffmpegDecoder) Resize(canvas Size, widthMultiplier float64) error {
	if d.path == "" {
		return ErrNotOpen
	}
	size, err := fitInto(d.encoded, canvas, widthMultiplier)
	if err != nil {
		return err
	}
	d.output = size
	return nil
}

func (d *ffmpegDecoder) Close() error {
	d.path = ""
	d.pts = nil
	return nil
}

func (d *ffmpegDecoder) run(binary string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, lastLine(msg))
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
