// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package decoder

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// SyntheticScheme prefixes generated test sources, e.g.
// "synthetic:?frames=210&width=352&height=288&fps=25".
const SyntheticScheme = "synthetic:"

var ErrFrameFault = errors.New("decoder: injected frame fault")

// IsSynthetic reports whether path names a generated source
func IsSynthetic(path string) bool {
	return strings.HasPrefix(path, SyntheticScheme)
}

type synthetic struct {
	frames  int
	fps     float64
	failAt  int
	encoded Size
	output  Size
	open    bool
}

// NewSynthetic creates a decoder of deterministic gradient frames.
// Frame i has red = i mod 256, green ramping over x, blue ramping over y.
func NewSynthetic() Decoder {
	return &synthetic{failAt: -1}
}

func (s *synthetic) Open(path string) (int, error) {
	if !IsSynthetic(path) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	u, err := url.Parse(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidPath, path, err)
	}
	if u.Opaque != "" {
		return 0, fmt.Errorf("%w: %s: unknown pattern %q", ErrInvalidPath, path, u.Opaque)
	}
	q := u.Query()

	frames, err := intParam(q, "frames", 100)
	if err != nil {
		return 0, err
	}
	width, err := intParam(q, "width", 64)
	if err != nil {
		return 0, err
	}
	height, err := intParam(q, "height", 48)
	if err != nil {
		return 0, err
	}
	failAt, err := intParam(q, "fail_at", -1)
	if err != nil {
		return 0, err
	}
	fps := 24.0
	if v := q.Get("fps"); v != "" {
		if fps, err = strconv.ParseFloat(v, 64); err != nil || fps <= 0 {
			return 0, fmt.Errorf("%w: fps=%q", ErrInvalidPath, v)
		}
	}
	if frames <= 0 {
		return 0, fmt.Errorf("%w: %s", ErrEmptySource, path)
	}
	if width <= 0 || height <= 0 {
		return 0, fmt.Errorf("%w: %dx%d", ErrInvalidCanvas, width, height)
	}

	s.frames = frames
	s.fps = fps
	s.failAt = failAt
	s.encoded = Size{W: width, H: height}
	s.output = s.encoded
	s.open = true
	return frames, nil
}

func intParam(q url.Values, key string, def int) (int, error) {
	v := q.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidPath, key, v)
	}
	return n, nil
}

func (s *synthetic) ReadFrame(index int) (*Frame, error) {
	if !s.open {
		return nil, ErrNotOpen
	}
	if index < 0 || index >= s.frames {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexRange, index, s.frames)
	}
	if index == s.failAt {
		return nil, fmt.Errorf("%w at %d", ErrFrameFault, index)
	}

	w, h := s.output.W, s.output.H
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			pix[o] = byte(index)
			pix[o+1] = byte(x * 255 / w)
			pix[o+2] = byte(y * 255 / h)
		}
	}
	return &Frame{Width: w, Height: h, Pix: pix, DurationMs: frameDurationMs(1 / s.fps)}, nil
}

func (s *synthetic) Resize(canvas Size, widthMultiplier float64) error {
	if !s.open {
		return ErrNotOpen
	}
	size, err := fitInto(s.encoded, canvas, widthMultiplier)
	if err != nil {
		return err
	}
	s.output = size
	return nil
}

func (s *synthetic) Close() error {
	s.open = false
	return nil
}
