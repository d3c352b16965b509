// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var canvas = decoder.Size{W: 64, H: 48}

func newTestFacade(t *testing.T, spawner worker.Spawner, composer Composer) *Facade {
	t.Helper()
	f, err := New(Config{
		Spawner:           spawner,
		Composer:          composer,
		PollInterval:      2 * time.Millisecond,
		BootstrapAttempts: 2500,
		OpenTimeout:       10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func syntheticSpawner() worker.Spawner {
	return &worker.LocalSpawner{NewDecoder: decoder.NewSynthetic, Poll: 2 * time.Millisecond}
}

func TestFacade_OpenPairAndReplaceRightWithBadPath(t *testing.T) {
	f := newTestFacade(t, syntheticSpawner(), &stubComposer{})

	require.NoError(t, f.CreateLeft("synthetic:?frames=210"))
	require.NoError(t, f.CreateRight("synthetic:?frames=200"))
	require.NotNil(t, f.Left())
	require.NotNil(t, f.Right())
	assert.Equal(t, 210, f.Left().Length())
	assert.Equal(t, 200, f.Right().Length())

	res, err := f.RequestFrame(false, canvas)
	require.NoError(t, err)
	assert.False(t, res.Output.Failed())
	require.NotNil(t, res.Output.Merged)
	assert.Equal(t, 0, res.Left.Index)
	assert.Equal(t, 0, res.Right.Index)

	err = f.CreateRight("/no/such/clip.mp4")
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, SideRight, openErr.Side)
	assert.Equal(t, "/no/such/clip.mp4", openErr.Path)
	assert.Contains(t, err.Error(), "/no/such/clip.mp4")

	assert.Nil(t, f.Right())
	require.NotNil(t, f.Left())
	assert.Equal(t, 210, f.Left().Length())
	left, right := f.Paths()
	assert.Equal(t, "synthetic:?frames=210", left)
	assert.Empty(t, right)

	// the left side alone still renders
	res, err = f.RequestFrame(false, canvas)
	require.NoError(t, err)
	assert.Nil(t, res.Output.Right())
	assert.Len(t, f.Workers(), 1)
}

func TestFacade_ReopenKeepsIndexOfUnchangedSide(t *testing.T) {
	f := newTestFacade(t, syntheticSpawner(), nil)

	require.NoError(t, f.CreateLeft("synthetic:?frames=100"))
	require.NoError(t, f.CreateRight("synthetic:?frames=100"))
	f.Left().SetIndex(50)
	f.Right().SetIndex(60)

	require.NoError(t, f.CreateRight("synthetic:?frames=150"))
	assert.Equal(t, 50, f.Left().Index())
	assert.Equal(t, 0, f.Right().Index())
	assert.Equal(t, 150, f.Right().Length())
}

func TestFacade_CachedFrameIsReused(t *testing.T) {
	rec := newRecorder()
	f := newTestFacade(t, rec.spawner(), &stubComposer{})
	require.NoError(t, f.CreateLeft(leftPath))
	require.NoError(t, f.CreateRight(rightPath))

	first, err := f.GetNextFrame(false, canvas)
	require.NoError(t, err)
	second, err := f.GetNextFrame(false, canvas)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, rec.count(leftPath, "read:"))
	assert.Equal(t, 1, rec.count(rightPath, "read:"))

	// moving a cursor makes the cache stale
	f.Left().Shift(1)
	f.Right().Shift(1)
	require.Eventually(t, func() bool {
		res, err := f.GetNextFrame(false, canvas)
		return err == nil && res.Left.Index == 1
	}, 5*time.Second, 2*time.Millisecond)
	// CreateRight reopened the left source too
	assert.Equal(t, []string{"open", "open", "read:0", "read:1"}, rec.Ops(leftPath))
}

func TestFacade_UpdateCursorAdvances(t *testing.T) {
	rec := newRecorder()
	f := newTestFacade(t, rec.spawner(), nil)
	require.NoError(t, f.CreateLeft(leftPath))
	require.NoError(t, f.CreateRight(rightPath))

	res, err := f.GetNextFrame(true, canvas)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Left.Index)
	assert.Equal(t, 1, f.Left().Index())
	assert.Equal(t, 1, f.Right().Index())
}

func TestFacade_HasPendingWorkIsStable(t *testing.T) {
	rec := newRecorder()
	f := newTestFacade(t, rec.spawner(), nil)
	require.NoError(t, f.CreateLeft(leftPath))
	require.NoError(t, f.CreateRight(rightPath))

	_, err := f.GetNextFrame(false, canvas)
	require.NoError(t, err)
	assert.False(t, f.HasPendingWork())
	assert.False(t, f.HasPendingWork())

	rec.Hold()
	f.Left().Shift(5)
	f.Right().Shift(5)
	cached, err := f.GetNextFrame(false, canvas)
	require.NoError(t, err)
	assert.Equal(t, 0, cached.Left.Index)
	assert.True(t, f.HasPendingWork())
	assert.True(t, f.HasPendingWork())

	rec.Release()
	require.Eventually(t, func() bool {
		_, err := f.GetNextFrame(false, canvas)
		return err == nil && !f.HasPendingWork()
	}, 5*time.Second, 2*time.Millisecond)
	assert.False(t, f.HasPendingWork())
	assert.False(t, f.HasPendingWork())
}

func TestFacade_ResizeArrivingAfterQueuedDecode(t *testing.T) {
	rec := newRecorder()
	f := newTestFacade(t, rec.spawner(), nil)
	require.NoError(t, f.CreateLeft(leftPath))
	require.NoError(t, f.CreateRight(rightPath))

	big := decoder.Size{W: 100, H: 100}
	small := decoder.Size{W: 50, H: 50}

	f.UpdateCanvasSize(big)
	res, err := f.GetNextFrame(false, big)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		res, err = f.GetNextFrame(false, big)
		return err == nil && !f.HasPendingWork()
	}, 5*time.Second, 2*time.Millisecond)
	assert.Equal(t, 100, res.Output.Left().Value.Frame.Width)

	// frame 1 is being decoded at the old size while frame 2 waits
	rec.Hold()
	f.Left().Shift(1)
	f.Right().Shift(1)
	_, err = f.GetNextFrame(false, big)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.Blocked(leftPath) > 0 }, 5*time.Second, time.Millisecond)

	f.Left().Shift(1)
	f.Right().Shift(1)
	_, err = f.GetNextFrame(false, big)
	require.NoError(t, err)
	f.UpdateCanvasSize(small)
	rec.Release()

	require.Eventually(t, func() bool {
		res, err = f.GetNextFrame(false, small)
		return err == nil && !f.HasPendingWork()
	}, 5*time.Second, 2*time.Millisecond)
	assert.Equal(t, 2, res.Left.Index)
	assert.Equal(t, 50, res.Output.Left().Value.Frame.Width)

	ops := rec.Ops(leftPath)
	resizeAt, readAt := -1, -1
	for i, op := range ops {
		if op == "resize:50x50" && resizeAt < 0 {
			resizeAt = i
		}
		if op == "read:2" && readAt < 0 {
			readAt = i
		}
	}
	require.NotEqual(t, -1, resizeAt, "ops: %v", ops)
	require.NotEqual(t, -1, readAt, "ops: %v", ops)
	assert.Less(t, resizeAt, readAt, "ops: %v", ops)
}

func TestFacade_SetModeResizesForSideBySide(t *testing.T) {
	rec := newRecorder()
	f := newTestFacade(t, rec.spawner(), nil)
	require.NoError(t, f.CreateLeft(leftPath))

	f.UpdateCanvasSize(decoder.Size{W: 80, H: 40})
	f.SetMode(ModeSBS)
	assert.Equal(t, ModeSBS, f.Mode())

	require.Eventually(t, func() bool {
		_, err := f.GetNextFrame(false, decoder.Size{})
		return err == nil && !f.HasPendingWork()
	}, 5*time.Second, 2*time.Millisecond)
	assert.Contains(t, rec.Ops(leftPath), "resize:40x40")
}

func TestFacade_BootstrapFailure(t *testing.T) {
	rec := newRecorder()
	f, err := New(Config{
		Spawner:           rec.spawner(),
		PollInterval:      2 * time.Millisecond,
		BootstrapAttempts: 5,
	})
	require.NoError(t, err)
	defer f.Close()
	defer rec.Release()

	require.NoError(t, f.CreateLeft(leftPath))
	rec.Hold()
	_, err = f.RequestFrame(false, canvas)
	assert.ErrorIs(t, err, ErrBootstrap)
}

func TestFacade_NoSource(t *testing.T) {
	f := newTestFacade(t, syntheticSpawner(), nil)
	_, err := f.GetNextFrame(false, canvas)
	assert.ErrorIs(t, err, ErrNoSource)
	assert.False(t, f.HasPendingWork())
	assert.ErrorIs(t, f.Create("middle", "x"), ErrBadSide)
}

func TestFacade_Closed(t *testing.T) {
	f, err := New(Config{Spawner: syntheticSpawner(), PollInterval: 2 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, f.CreateLeft("synthetic:?frames=10"))

	f.Close()
	f.Close()
	assert.ErrorIs(t, f.CreateRight("synthetic:"), ErrClosed)
	_, err = f.RequestFrame(false, canvas)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, f.Workers())
}

func TestFacade_OpenTimeoutLeavesSideAbsent(t *testing.T) {
	f, err := New(Config{
		Spawner:           slowSpawner(300 * time.Millisecond),
		Composer:          &stubComposer{},
		PollInterval:      2 * time.Millisecond,
		BootstrapAttempts: 2500,
		OpenTimeout:       50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(f.Close)

	require.NoError(t, f.CreateLeft("synthetic:?frames=10"))
	err = f.CreateRight("slow:synthetic:?frames=5")
	var openErr *OpenError
	require.True(t, errors.As(err, &openErr))
	assert.ErrorIs(t, err, ErrOpenTimeout)
	assert.Equal(t, SideRight, openErr.Side)
	assert.Nil(t, f.Right())

	// the timed out open finishes in the background meanwhile
	time.Sleep(500 * time.Millisecond)

	res, err := f.RequestFrame(false, canvas)
	require.NoError(t, err)
	assert.Nil(t, res.Output.Right())
	require.NotNil(t, res.Output.Left())
	assert.NoError(t, res.Output.Left().Err)
	assert.Nil(t, f.Right())
	require.NotNil(t, f.Left())
	assert.Equal(t, 10, f.Left().Length())

	require.Eventually(t, func() bool {
		workers := f.Workers()
		return len(workers) == 1 && workers[0].Side == SideLeft
	}, 5*time.Second, 5*time.Millisecond)
	left, right := f.Paths()
	assert.Equal(t, "synthetic:?frames=10", left)
	assert.Empty(t, right)
}

func TestFacade_FailedRequestKeepsPaths(t *testing.T) {
	f := newTestFacade(t, syntheticSpawner(), nil)
	require.NoError(t, f.CreateLeft("synthetic:?frames=10"))

	// the loop is gone but the facade was not closed
	f.cancel()
	<-f.done

	assert.ErrorIs(t, f.CreateRight("synthetic:?frames=5"), ErrClosed)
	left, right := f.Paths()
	assert.Equal(t, "synthetic:?frames=10", left)
	assert.Empty(t, right)
	assert.Nil(t, f.Right())
}

func TestNew_RequiresSpawner(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrNoSpawner)
}
