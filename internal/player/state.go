// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package player

import (
	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/playback"
)

// SideState describes one source
type SideState struct {
	Path   string `json:"path"`
	Index  int    `json:"index"`
	Length int    `json:"length"`
	AtEnd  bool   `json:"at_end"`
}

// MetricsState describes the loaded quality report
type MetricsState struct {
	File    string   `json:"file,omitempty"`
	Frames  int      `json:"frames"`
	Enabled []string `json:"enabled"`
}

// State is a point-in-time view of the player
type State struct {
	Session  string             `json:"session"`
	Title    string             `json:"title"`
	Paused   bool               `json:"paused"`
	Parked   bool               `json:"parked"`
	Offset   int                `json:"offset"`
	Timeline *playback.Timeline `json:"timeline,omitempty"`
	Left     *SideState         `json:"left,omitempty"`
	Right    *SideState         `json:"right,omitempty"`
	Mode     string             `json:"mode"`
	Canvas   decoder.Size       `json:"canvas"`
	Pending  bool               `json:"pending"`
	Rendered uint64             `json:"rendered_frames"`
	Metrics  MetricsState       `json:"metrics"`
	Error    string             `json:"last_error,omitempty"`
}

func sideState(path string, pos *playback.Position) *SideState {
	if pos == nil {
		return nil
	}
	return &SideState{Path: path, Index: pos.Index(), Length: pos.Length(), AtEnd: pos.IsEnd()}
}

// Snapshot returns the current state
func (p *Player) Snapshot() State {
	p.lock.Lock()
	defer p.lock.Unlock()

	leftPath, rightPath := p.facade.Paths()
	left, right := p.facade.Left(), p.facade.Right()

	st := State{
		Session:  p.id,
		Title:    p.title(),
		Paused:   p.paused,
		Parked:   p.cyclePaused,
		Offset:   p.offset,
		Left:     sideState(leftPath, left),
		Right:    sideState(rightPath, right),
		Mode:     p.facade.Mode(),
		Canvas:   p.canvas,
		Pending:  p.facade.HasPendingWork(),
		Rendered: p.rendered,
		Error:    p.lastErr,
		Metrics: MetricsState{
			File:    p.metrics.Path(),
			Frames:  p.metrics.Frames(),
			Enabled: []string{},
		},
	}
	if left != nil && right != nil {
		tl := playback.TimelineFor(left, right, p.offset)
		st.Timeline = &tl
	}
	for _, q := range p.enabled {
		st.Metrics.Enabled = append(st.Metrics.Enabled, q.Name)
	}
	return st
}
