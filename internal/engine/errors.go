// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"errors"
	"fmt"
)

var (
	ErrBootstrap   = errors.New("engine: no first frame after bootstrap attempts")
	ErrClosed      = errors.New("engine: closed")
	ErrNoSource    = errors.New("engine: no source open")
	ErrOpenTimeout = errors.New("engine: timed out waiting for workers to open")
	ErrBadSide     = errors.New("engine: side must be left or right")
	ErrNoSpawner   = errors.New("engine: no worker spawner configured")
)

// OpenError means a source could not be opened. That side stays absent.
type OpenError struct {
	Side string
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("can't open %s source %q: %v", e.Side, e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}
