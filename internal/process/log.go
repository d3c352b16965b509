// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package process

import (
	"container/ring"
	"sync"
	"time"
)

// Line is a timestamped log line
type Line struct {
	Timestamp time.Time
	Data      string
}

// logRing keeps the last N stderr lines of a child
type logRing struct {
	r    *ring.Ring
	lock sync.Mutex
}

func newRing(lines int) *logRing {
	if lines <= 0 {
		lines = 100
	}
	return &logRing{r: ring.New(lines)}
}

func (l *logRing) Append(data string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.r.Value = Line{Timestamp: time.Now(), Data: data}
	l.r = l.r.Next()
}

// Lines returns the buffered lines oldest first
func (l *logRing) Lines() []Line {
	l.lock.Lock()
	defer l.lock.Unlock()

	var out []Line
	l.r.Do(func(v interface{}) {
		if line, ok := v.(Line); ok {
			out = append(out, line)
		}
	})
	return out
}
