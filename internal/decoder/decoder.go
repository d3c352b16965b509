// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具
//
// Package decoder defines the frame source a worker drives and ships two
// implementations: ffmpeg/ffprobe backed files and synthetic test patterns.

package decoder

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen       = errors.New("decoder: no source open")
	ErrIndexRange    = errors.New("decoder: frame index out of range")
	ErrInvalidPath   = errors.New("decoder: source path rejected")
	ErrEmptySource   = errors.New("decoder: source has no video frames")
	ErrShortRead     = errors.New("decoder: short frame read")
	ErrInvalidCanvas = errors.New("decoder: canvas size must be positive")
)

// Size is a width/height pair in pixels
type Size struct {
	W int `msgpack:"w" json:"width"`
	H int `msgpack:"h" json:"height"`
}

func (s Size) IsZero() bool { return s.W <= 0 || s.H <= 0 }

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.W, s.H) }

// Frame is one decoded picture in packed RGB24.
type Frame struct {
	Width      int     `msgpack:"width"`
	Height     int     `msgpack:"height"`
	Pix        []byte  `msgpack:"pix"`
	DurationMs float64 `msgpack:"duration_ms"`
}

// Decoder is a single-source, single-threaded frame reader.
type Decoder interface {
	// Open indexes the source and returns its frame count.
	Open(path string) (int, error)
	// ReadFrame decodes the frame at index at the current output size.
	ReadFrame(index int) (*Frame, error)
	// Resize fits the output size into canvas, with the canvas width
	// scaled by widthMultiplier (0.5 for side-by-side layouts).
	Resize(canvas Size, widthMultiplier float64) error
	Close() error
}

// fitInto scales src to the largest size that fits canvas keeping aspect.
func fitInto(src, canvas Size, widthMultiplier float64) (Size, error) {
	if widthMultiplier <= 0 {
		widthMultiplier = 1
	}
	target := Size{W: int(float64(canvas.W) * widthMultiplier), H: canvas.H}
	if target.IsZero() || src.IsZero() {
		return Size{}, fmt.Errorf("%w: %s", ErrInvalidCanvas, target)
	}
	coeff := float64(target.W) / float64(src.W)
	if c := float64(target.H) / float64(src.H); c < coeff {
		coeff = c
	}
	out := Size{W: int(float64(src.W) * coeff), H: int(float64(src.H) * coeff)}
	if out.W < 1 {
		out.W = 1
	}
	if out.H < 1 {
		out.H = 1
	}
	return out, nil
}

// frameDurationMs converts a PTS delta in seconds, falling back to 24 fps
// when timestamps are missing or degenerate.
func frameDurationMs(deltaSeconds float64) float64 {
	if deltaSeconds < 1e-3 {
		deltaSeconds = 1.0 / 24
	}
	return deltaSeconds * 1000
}
