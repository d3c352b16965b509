// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package worker

import (
	"errors"
	"fmt"

	"github.com/ZSC714725/pairview/internal/decoder"
)

// Command names understood by a worker
const (
	CmdOpen      = "open"
	CmdLength    = "length"
	CmdReadFrame = "read_frame"
	CmdResize    = "resize"
	CmdQuit      = "quit"
)

var (
	ErrWorkerLost = errors.New("worker: exited or became unreachable before replying")
	ErrWorkerGone = errors.New("worker: not running")
	ErrQueueFull  = errors.New("worker: request queue full")
	ErrUnknownCmd = errors.New("worker: unknown command")
	ErrNoSource   = errors.New("worker: no source given")
)

// Args is the argument set of one command for one side. It is comparable
// so callers can tell whether a reply belongs to the latest request.
type Args struct {
	Path            string       `msgpack:"path,omitempty"`
	Index           int          `msgpack:"index"`
	Canvas          decoder.Size `msgpack:"canvas"`
	WidthMultiplier float64      `msgpack:"width_multiplier"`
}

// Request is sent to a worker
type Request struct {
	Name string `msgpack:"name"`
	Args Args   `msgpack:"args"`
}

// Value is the payload of a successful reply
type Value struct {
	Length int            `msgpack:"length,omitempty"`
	Frame  *decoder.Frame `msgpack:"frame,omitempty"`
}

// Failure is an error captured inside a worker and carried back as data
type Failure struct {
	Op      string `msgpack:"op"`
	Message string `msgpack:"message"`
	Panic   bool   `msgpack:"panic,omitempty"`
}

func (f *Failure) Error() string {
	if f.Panic {
		return fmt.Sprintf("%s: panic: %s", f.Op, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Op, f.Message)
}

// Reply answers one Request. Exactly one of Value or Failure is meaningful.
type Reply struct {
	Name    string   `msgpack:"name"`
	Args    Args     `msgpack:"args"`
	Value   Value    `msgpack:"value"`
	Failure *Failure `msgpack:"failure,omitempty"`
}

// Err returns the captured failure as an error, or nil
func (r Reply) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func fail(op string, err error) *Failure {
	return &Failure{Op: op, Message: err.Error()}
}
