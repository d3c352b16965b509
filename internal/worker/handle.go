// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package worker

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Handle is the supervisor side of one worker
type Handle interface {
	ID() string
	// Execute queues req without blocking
	Execute(req Request) error
	// AwaitResult waits for the next reply. It returns false once ctx is
	// done or the worker is gone and nothing is left to read.
	AwaitResult(ctx context.Context) (Reply, bool)
	// Terminate stops the worker unconditionally
	Terminate()
	Alive() bool
	Stats() Stats
}

// Spawner starts a worker for one source
type Spawner interface {
	Spawn(side, source string) (Handle, error)
}

// Stats describes a running or dead worker
type Stats struct {
	ID         string    `json:"id"`
	Side       string    `json:"side"`
	Source     string    `json:"source"`
	Isolation  string    `json:"isolation"`
	State      string    `json:"state"`
	Pid        int       `json:"pid,omitempty"`
	CPU        float64   `json:"cpu_usage"`
	Memory     uint64    `json:"memory_bytes"`
	PeakMemory uint64    `json:"peak_memory_bytes"`
	Started    time.Time `json:"started_at"`
	Log        []string  `json:"log,omitempty"`
}

const (
	defaultPoll = 50 * time.Millisecond
	deadGrace   = 2 * time.Second
)

func newID(side string) string {
	return side + "-" + shortuuid.New()
}

// await polls replies with a short timeout. Between polls it checks the
// caller's liveness (ctx) and the worker's. Once the worker is gone it
// keeps reading until replies is closed, since the last reply may still
// be on its way, but for no longer than deadGrace.
func await(ctx context.Context, replies <-chan Reply, alive func() bool, poll time.Duration) (Reply, bool) {
	if poll <= 0 {
		poll = defaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var grace <-chan time.Time
	for {
		select {
		case rep, ok := <-replies:
			return rep, ok
		case <-grace:
			return Reply{}, false
		case <-ticker.C:
			if ctx.Err() != nil {
				select {
				case rep, ok := <-replies:
					return rep, ok
				default:
					return Reply{}, false
				}
			}
			if grace == nil && !alive() {
				timer := time.NewTimer(deadGrace)
				defer timer.Stop()
				grace = timer.C
			}
		}
	}
}
