// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import "time"

// Observer receives scheduler events, e.g. to export metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// CommandQueued is called for every dispatched command
	CommandQueued(name string, coalesce bool)
	// CommandCoalesced is called when a pending command is overwritten
	CommandCoalesced(name string)
	CommandExecuted(name string, d time.Duration)
	SideFailed(side, name string)
	PendingChanged(n int)
}

type nopObserver struct{}

func (nopObserver) CommandQueued(string, bool)            {}
func (nopObserver) CommandCoalesced(string)               {}
func (nopObserver) CommandExecuted(string, time.Duration) {}
func (nopObserver) SideFailed(string, string)             {}
func (nopObserver) PendingChanged(int)                    {}
