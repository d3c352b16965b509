// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	leftPath  = "rec:a/210"
	rightPath = "rec:b/200"
)

func newTestSupervisor(t *testing.T, spawner worker.Spawner, composer Composer) *Supervisor {
	t.Helper()
	return NewSupervisor(SupervisorConfig{
		Spawner:      spawner,
		Composer:     composer,
		PollInterval: 2 * time.Millisecond,
		QueueSize:    16,
	})
}

func runSupervisor(t *testing.T, s *Supervisor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func nextResult(t *testing.T, s *Supervisor) *Result {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("no result from supervisor")
	}
	return nil
}

func readFrame(left, right int) Command {
	return Command{
		Name:     worker.CmdReadFrame,
		Left:     &worker.Args{Index: left},
		Right:    &worker.Args{Index: right},
		Coalesce: true,
	}
}

func TestSupervisor_CoalescesSameName(t *testing.T) {
	rec := newRecorder()
	s := newTestSupervisor(t, rec.spawner(), nil)
	ctx := context.Background()

	// everything is queued before the loop starts, so all three dispatches
	// are pending together
	reply, err := s.RequestReconfigure(ctx, leftPath, rightPath)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Dispatch(ctx, readFrame(i, i+10)))
	}
	runSupervisor(t, s)

	lengths := <-reply
	assert.Equal(t, 210, lengths.Output.Left().Value.Length)
	assert.Equal(t, 200, lengths.Output.Right().Value.Length)

	res := nextResult(t, s)
	assert.Equal(t, worker.CmdReadFrame, res.Name)
	assert.Equal(t, 3, res.Left.Index)
	assert.Equal(t, 13, res.Right.Index)

	select {
	case extra := <-s.Results():
		t.Fatalf("unexpected second execution: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []string{"open", "read:3"}, rec.Ops(leftPath))
	assert.Equal(t, []string{"open", "read:13"}, rec.Ops(rightPath))
}

func TestSupervisor_PriorityThenName(t *testing.T) {
	rec := newRecorder()
	s := newTestSupervisor(t, rec.spawner(), nil)
	ctx := context.Background()

	_, err := s.RequestReconfigure(ctx, leftPath, "")
	require.NoError(t, err)
	require.NoError(t, s.Dispatch(ctx, Command{Name: worker.CmdReadFrame, Left: &worker.Args{Index: 4}, Coalesce: true}))
	require.NoError(t, s.Dispatch(ctx, Command{Name: worker.CmdLength, Left: &worker.Args{}, Coalesce: true}))
	require.NoError(t, s.Dispatch(ctx, Command{
		Name:     worker.CmdResize,
		Left:     &worker.Args{Canvas: decoder.Size{W: 20, H: 10}, WidthMultiplier: 1},
		Coalesce: true,
		Priority: 10,
	}))
	runSupervisor(t, s)

	var order []string
	for i := 0; i < 3; i++ {
		order = append(order, nextResult(t, s).Name)
	}
	assert.Equal(t, []string{worker.CmdResize, worker.CmdLength, worker.CmdReadFrame}, order)
	assert.Equal(t, []string{"open", "resize:20x10", "read:4"}, rec.Ops(leftPath))
}

func TestSupervisor_ImmediateCommand(t *testing.T) {
	rec := newRecorder()
	s := newTestSupervisor(t, rec.spawner(), nil)
	runSupervisor(t, s)

	ctx := context.Background()
	reply, err := s.RequestReconfigure(ctx, leftPath, rightPath)
	require.NoError(t, err)
	<-reply

	require.NoError(t, s.Dispatch(ctx, Command{Name: worker.CmdLength, Left: &worker.Args{}, Right: &worker.Args{}}))
	res := nextResult(t, s)
	assert.Equal(t, worker.CmdLength, res.Name)
	assert.Equal(t, 210, res.Output.Left().Value.Length)
}

func TestSupervisor_CombineAndFailure(t *testing.T) {
	rec := newRecorder()
	composer := &stubComposer{}
	s := newTestSupervisor(t, rec.spawner(), composer)
	defer s.teardown()
	ctx := context.Background()

	res := s.Reconfigure(ctx, leftPath, "rec:flaky/50")
	require.False(t, res.Output.Failed())

	spec := &CombineSpec{Mode: ModeSplit, Canvas: decoder.Size{W: 16, H: 16}}
	cmd := readFrame(1, 1)
	cmd.Combine = spec
	res = s.Execute(ctx, cmd)

	assert.Nil(t, res.Output.Merged)
	assert.Zero(t, composer.calls.Load())
	require.NoError(t, res.Output.Left().Err)
	assert.NotNil(t, res.Output.Left().Value.Frame)

	var failure *worker.Failure
	require.True(t, errors.As(res.Output.Right().Err, &failure))
	assert.Equal(t, worker.CmdReadFrame, failure.Op)
	assert.Contains(t, failure.Message, "corrupt frame")

	// the failing worker keeps serving
	res = s.Execute(ctx, Command{Name: worker.CmdLength, Left: &worker.Args{}, Right: &worker.Args{}})
	assert.Equal(t, 50, res.Output.Right().Value.Length)
}

func TestSupervisor_CombineWithAbsentSide(t *testing.T) {
	rec := newRecorder()
	composer := &stubComposer{}
	s := newTestSupervisor(t, rec.spawner(), composer)
	defer s.teardown()
	ctx := context.Background()

	s.Reconfigure(ctx, leftPath, "")
	cmd := Command{Name: worker.CmdReadFrame, Left: &worker.Args{Index: 2}, Combine: &CombineSpec{Mode: ModeSBS}}
	res := s.Execute(ctx, cmd)

	assert.Nil(t, res.Output.Right())
	require.NotNil(t, res.Output.Merged)
	assert.Equal(t, 40.0, res.Output.Merged.DurationMs)
	assert.EqualValues(t, 1, composer.calls.Load())
	assert.Equal(t, ModeSBS, composer.last.Load().(CombineSpec).Mode)
}

func TestSupervisor_SideWithoutArgsIsNotRun(t *testing.T) {
	rec := newRecorder()
	composer := &stubComposer{}
	s := newTestSupervisor(t, rec.spawner(), composer)
	defer s.teardown()
	ctx := context.Background()

	res := s.Reconfigure(ctx, leftPath, rightPath)
	require.False(t, res.Output.Failed())

	cmd := Command{Name: worker.CmdReadFrame, Left: &worker.Args{Index: 3}, Combine: &CombineSpec{Mode: ModeSplit}}
	res = s.Execute(ctx, cmd)
	require.NotNil(t, res.Output.Left())
	assert.NoError(t, res.Output.Left().Err)
	assert.Nil(t, res.Output.Right())
	require.NotNil(t, res.Output.Merged)

	assert.Equal(t, 1, rec.count(leftPath, "read:"))
	assert.Zero(t, rec.count(rightPath, "read:"))
}

func TestSupervisor_ReconfigureOpenFailure(t *testing.T) {
	rec := newRecorder()
	s := newTestSupervisor(t, rec.spawner(), nil)
	defer s.teardown()

	res := s.Reconfigure(context.Background(), leftPath, "bad:clip.mp4")
	require.NoError(t, res.Output.Left().Err)
	assert.Equal(t, 210, res.Output.Left().Value.Length)

	var failure *worker.Failure
	require.True(t, errors.As(res.Output.Right().Err, &failure))
	assert.Equal(t, worker.CmdOpen, failure.Op)
	assert.Contains(t, failure.Message, "bad:clip.mp4")

	workers := s.Workers()
	require.Len(t, workers, 1)
	assert.Equal(t, SideLeft, workers[0].Side)
}

func TestSupervisor_LivenessLoss(t *testing.T) {
	rec := newRecorder()
	s := newTestSupervisor(t, lossySpawner{fallback: rec.spawner()}, &stubComposer{})
	defer s.teardown()
	ctx := context.Background()

	res := s.Reconfigure(ctx, leftPath, "rec:lossy/10")
	require.False(t, res.Output.Failed())
	assert.Equal(t, 10, res.Output.Right().Value.Length)

	cmd := readFrame(0, 0)
	cmd.Combine = &CombineSpec{Mode: ModeSplit}
	done := make(chan *Result, 1)
	go func() { done <- s.Execute(ctx, cmd) }()

	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("execute hung on a lost worker")
	}
	assert.ErrorIs(t, res.Output.Right().Err, worker.ErrWorkerLost)
	assert.NoError(t, res.Output.Left().Err)
	assert.Nil(t, res.Output.Merged)
}

func TestSupervisor_ReconfigureDiscardsPending(t *testing.T) {
	rec := newRecorder()
	s := newTestSupervisor(t, rec.spawner(), nil)
	ctx := context.Background()

	_, err := s.RequestReconfigure(ctx, leftPath, "")
	require.NoError(t, err)
	require.NoError(t, s.Dispatch(ctx, Command{Name: worker.CmdReadFrame, Left: &worker.Args{Index: 7}, Coalesce: true}))
	second, err := s.RequestReconfigure(ctx, "rec:c/30", "")
	require.NoError(t, err)
	runSupervisor(t, s)

	res := <-second
	assert.Equal(t, 30, res.Output.Left().Value.Length)

	select {
	case extra := <-s.Results():
		t.Fatalf("pending command survived reconfigure: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []string{"open"}, rec.Ops(leftPath))
}
