// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogger_LevelsAndPrefix(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "pairview", false).With("left")

	l.Info("opened %s", "a.mp4")
	l.Debug("hidden")
	l.Error("boom")

	out := buf.String()
	assert.Contains(t, out, "[INFO] pairview: left: opened a.mp4")
	assert.Contains(t, out, "[ERROR] pairview: left: boom")
	assert.NotContains(t, out, "hidden")
}

func TestLogger_VerboseDebug(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "", true)

	l.Debug("tick %d", 3)
	assert.Contains(t, buf.String(), "[DEBUG] tick 3")
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	l.Info("nothing")
	assert.NotNil(t, l.With("x"))
}
