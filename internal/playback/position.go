// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具
//
// Package playback holds the frame cursors of the two videos and the
// algorithm that keeps them apart by a fixed offset.

package playback

// Position is a frame cursor over a sequence of known length.
// Index is always within [0, Length-1]; every mutation clamps.
type Position struct {
	length int
	index  int
}

// NewPosition creates a cursor at frame 0. Lengths below 1 are treated as 1.
func NewPosition(length int) *Position {
	if length < 1 {
		length = 1
	}
	return &Position{length: length}
}

// NewPositionAt creates a cursor and places it at index (clamped).
func NewPositionAt(length, index int) *Position {
	p := NewPosition(length)
	p.SetIndex(index)
	return p
}

func clamp(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// SetIndex moves the cursor to n, clamped into range.
func (p *Position) SetIndex(n int) {
	p.index = clamp(n, 0, p.length-1)
}

// Shift moves the cursor by delta, clamped into range.
func (p *Position) Shift(delta int) {
	p.SetIndex(p.index + delta)
}

// IsEnd reports whether the cursor sits on the last frame.
func (p *Position) IsEnd() bool {
	return p.index == p.length-1
}

func (p *Position) Index() int  { return p.index }
func (p *Position) Length() int { return p.length }
