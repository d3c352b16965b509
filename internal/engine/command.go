// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"image"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/worker"
)

// Sides of the pair, also used as labels
const (
	SideLeft  = "left"
	SideRight = "right"
)

var sideNames = [2]string{SideLeft, SideRight}

// Composition modes
const (
	ModeSplit = "split"
	ModeSBS   = "sbs"
	ModeChess = "chess"
)

// WidthMultiplier is the share of the canvas width one side gets in mode
func WidthMultiplier(mode string) float64 {
	if mode == ModeSBS {
		return 0.5
	}
	return 1
}

// CombineSpec tells the supervisor how to merge the two frames of a
// command. It is passed through the pipeline untouched.
type CombineSpec struct {
	Mode    string
	Canvas  decoder.Size
	Overlay []string
}

// Command is one named operation against both workers. A nil side args
// means that side is not addressed.
type Command struct {
	Name     string
	Left     *worker.Args
	Right    *worker.Args
	Coalesce bool
	Priority int
	Combine  *CombineSpec
}

func (c Command) args() [2]*worker.Args {
	return [2]*worker.Args{c.Left, c.Right}
}

// SideResult is the outcome of a command on one worker. Err is a
// *worker.Failure for failures inside the worker and worker.ErrWorkerLost
// when the worker went away without answering.
type SideResult struct {
	Value worker.Value
	Err   error
}

func (r *SideResult) Failed() bool {
	return r != nil && r.Err != nil
}

// Merged is a composed frame
type Merged struct {
	Image      image.Image
	DurationMs float64
}

// Output holds either the merged frame or the raw per-side results.
// Pair is always filled; a nil entry is an absent side.
type Output struct {
	Pair   [2]*SideResult
	Merged *Merged
	// Err is set when combining was requested but the composer failed
	Err error
}

// Left is the raw result of the left worker
func (o Output) Left() *SideResult { return o.Pair[0] }

// Right is the raw result of the right worker
func (o Output) Right() *SideResult { return o.Pair[1] }

// Failed reports whether any present side failed
func (o Output) Failed() bool {
	return o.Pair[0].Failed() || o.Pair[1].Failed()
}

// Result wraps the output with the command name and the args it ran with
type Result struct {
	Name   string
	Left   *worker.Args
	Right  *worker.Args
	Output Output
}

// argTuple is the comparable form of a command's args
type argTuple struct {
	left, right       worker.Args
	hasLeft, hasRight bool
}

func tupleOf(left, right *worker.Args) argTuple {
	var t argTuple
	if left != nil {
		t.left, t.hasLeft = *left, true
	}
	if right != nil {
		t.right, t.hasRight = *right, true
	}
	return t
}
