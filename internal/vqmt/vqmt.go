// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

// Package vqmt reads per-frame quality scores from a VQMT JSON report
package vqmt

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
)

// Query selects one metric column of the report. Empty fields match
// anything.
type Query struct {
	Name           string `json:"name"`
	Label          string `json:"label"`
	MetricName     string `json:"metric_name"`
	ColorComponent string `json:"color_component"`
	ValueID        string `json:"value_id,omitempty"`
	ComparedFiles  []int  `json:"compared_files,omitempty"`
}

// Built-in queries
var (
	PSNRY    = Query{Name: "PSNR_Y", Label: "PSNR, Y", MetricName: "psnr", ColorComponent: "Y"}
	SSIMY    = Query{Name: "SSIM_Y", Label: "SSIM, Y", MetricName: "ssim", ColorComponent: "Y"}
	NIQEY    = Query{Name: "NIQE_Y", Label: "NIQE, Y", MetricName: "niqe", ColorComponent: "Y", ComparedFiles: []int{1}}
	VMAF061Y = Query{Name: "VMAF061_Y", Label: "VMAF v0.6.1, Y", MetricName: "vmaf", ColorComponent: "Y", ValueID: "VMAF061"}
)

var builtins = []Query{PSNRY, SSIMY, NIQEY, VMAF061Y}

// Builtins returns the known queries in menu order
func Builtins() []Query {
	return slices.Clone(builtins)
}

// Lookup finds a built-in query by name
func Lookup(name string) (Query, bool) {
	for _, q := range builtins {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

type headMetric struct {
	MetricName     string `json:"metric_name"`
	ColorComponent string `json:"color_component"`
	ValueID        string `json:"value_id"`
	// the report spells it this way
	ComparedFiles []int `json:"compaired_files"`
	Col           int   `json:"col"`
}

type report struct {
	Head struct {
		Metrics []headMetric `json:"metrics"`
	} `json:"head"`
	Values []struct {
		Data []*float64 `json:"data"`
	} `json:"values"`
}

// Table is a loaded report. A nil *Table answers every query with nil.
type Table struct {
	path   string
	report report
}

// Load parses the report at path
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("can't load metrics from %s: %w", path, err)
	}
	t := &Table{path: path}
	if err := json.Unmarshal(data, &t.report); err != nil {
		return nil, fmt.Errorf("can't load metrics from %s: %w", path, err)
	}
	return t, nil
}

func (t *Table) Path() string {
	if t == nil {
		return ""
	}
	return t.path
}

// Frames is the number of frames with scores
func (t *Table) Frames() int {
	if t == nil {
		return 0
	}
	return len(t.report.Values)
}

func (m headMetric) matches(q Query) bool {
	if q.MetricName != "" && m.MetricName != q.MetricName {
		return false
	}
	if q.ColorComponent != "" && m.ColorComponent != q.ColorComponent {
		return false
	}
	if q.ValueID != "" && m.ValueID != q.ValueID {
		return false
	}
	if q.ComparedFiles != nil && !slices.Equal(m.ComparedFiles, q.ComparedFiles) {
		return false
	}
	return true
}

func (t *Table) column(q Query) (int, bool) {
	for _, m := range t.report.Head.Metrics {
		if m.matches(q) {
			return m.Col, true
		}
	}
	return 0, false
}

// Query returns one value per query for frame; nil where the report has
// no such metric or frame.
func (t *Table) Query(frame int, queries []Query) []*float64 {
	out := make([]*float64, len(queries))
	if t == nil || frame < 0 || frame >= len(t.report.Values) {
		return out
	}
	data := t.report.Values[frame].Data
	for i, q := range queries {
		col, ok := t.column(q)
		if !ok || col < 0 || col >= len(data) {
			continue
		}
		out[i] = data[col]
	}
	return out
}

// Lines formats the values of queries at frame for an overlay
func (t *Table) Lines(frame int, queries []Query) []string {
	values := t.Query(frame, queries)
	lines := make([]string, len(queries))
	for i, q := range queries {
		label := q.Label
		if label == "" {
			label = q.Name
		}
		v := "n/a"
		if values[i] != nil {
			v = strconv.FormatFloat(*values[i], 'f', 4, 64)
		}
		lines[i] = label + ": " + v
	}
	return lines
}
