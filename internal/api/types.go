// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package api

// SourceRequest opens a file on one side
type SourceRequest struct {
	Path string `json:"path" binding:"required"`
}

// CommandRequest for play/pause/toggle
type CommandRequest struct {
	Command string `json:"command" binding:"required"`
}

// SeekRequest moves the left cursor; the right one follows the offset
type SeekRequest struct {
	Position *int `json:"position" binding:"required"`
}

// StepRequest moves both cursors
type StepRequest struct {
	Delta int `json:"delta"`
}

// OffsetRequest asks for right - left == offset
type OffsetRequest struct {
	Offset *int `json:"offset" binding:"required"`
}

// ViewRequest selects the composition mode
type ViewRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// CanvasRequest for the output size
type CanvasRequest struct {
	Width  int `json:"width" binding:"required,min=1"`
	Height int `json:"height" binding:"required,min=1"`
}

// MetricsRequest loads a VQMT report and/or selects the shown metrics.
// A nil Enabled keeps the current selection.
type MetricsRequest struct {
	File    string   `json:"file"`
	Enabled []string `json:"enabled"`
}

// PlaybackResponse for play/pause/toggle
type PlaybackResponse struct {
	Playing bool `json:"playing"`
}

// WorkerReport is one worker with its log split into timestamp and data
type WorkerReport struct {
	ID         string      `json:"id"`
	Side       string      `json:"side"`
	Source     string      `json:"source"`
	Isolation  string      `json:"isolation"`
	State      string      `json:"exec"`
	Pid        int         `json:"pid,omitempty"`
	CPU        float64     `json:"cpu_usage"`
	Memory     uint64      `json:"memory_bytes"`
	PeakMemory uint64      `json:"peak_memory_bytes"`
	Runtime    int64       `json:"runtime_seconds"`
	Log        [][2]string `json:"log"`
}

// ErrorResponse for API errors
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}
