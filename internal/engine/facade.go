// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/logger"
	"github.com/ZSC714725/pairview/internal/playback"
	"github.com/ZSC714725/pairview/internal/worker"
)

// Priorities of the façade's coalesced commands
const (
	PriorityReadFrame = 0
	PriorityResize    = 10
)

// Config for a Facade
type Config struct {
	Spawner  worker.Spawner
	Composer Composer
	Observer Observer
	Logger   logger.Logger
	// Mode is the initial composition mode
	Mode string

	PollInterval      time.Duration
	BootstrapAttempts int
	QueueSize         int
	OpenTimeout       time.Duration
}

// OverlayFunc returns the text drawn over the frame pair at the given
// cursor indices; -1 marks an absent side.
type OverlayFunc func(left, right int) []string

// Facade is the render loop's view of the pair. Apart from opening
// sources and the first frame, none of its calls wait for a worker.
//
// A Facade is not safe for concurrent use.
type Facade struct {
	sup    *Supervisor
	logger logger.Logger
	cancel context.CancelFunc
	ctx    context.Context
	done   chan struct{}
	once   sync.Once
	closed bool

	poll        time.Duration
	attempts    int
	openTimeout time.Duration

	paths   [2]string
	cursors [2]*playback.Position

	canvas  decoder.Size
	mode    string
	overlay OverlayFunc

	lastInput  map[string]argTuple
	lastResult map[string]*Result

	// reply of the reconfigure that cleans up after an open timeout
	settling <-chan *Result
}

// New starts the supervisor loop and returns a Facade with no sources
func New(config Config) (*Facade, error) {
	if config.Spawner == nil {
		return nil, ErrNoSpawner
	}
	f := &Facade{
		logger:      logger.OrNop(config.Logger),
		done:        make(chan struct{}),
		poll:        config.PollInterval,
		attempts:    config.BootstrapAttempts,
		openTimeout: config.OpenTimeout,
		mode:        config.Mode,
		lastInput:   make(map[string]argTuple),
		lastResult:  make(map[string]*Result),
	}
	if f.poll <= 0 {
		f.poll = 50 * time.Millisecond
	}
	if f.attempts <= 0 {
		f.attempts = 100
	}
	if f.openTimeout <= 0 {
		f.openTimeout = time.Minute
	}
	if f.mode == "" {
		f.mode = ModeSplit
	}

	f.sup = NewSupervisor(SupervisorConfig{
		Spawner:      config.Spawner,
		Composer:     config.Composer,
		Observer:     config.Observer,
		Logger:       f.logger.With("supervisor"),
		PollInterval: f.poll,
		QueueSize:    config.QueueSize,
	})

	f.ctx, f.cancel = context.WithCancel(context.Background())
	go func() {
		defer close(f.done)
		f.sup.Run(f.ctx)
	}()
	return f, nil
}

// CreateLeft opens path as the left source
func (f *Facade) CreateLeft(path string) error {
	return f.create(0, path)
}

// CreateRight opens path as the right source
func (f *Facade) CreateRight(path string) error {
	return f.create(1, path)
}

// Create opens path on the named side
func (f *Facade) Create(side, path string) error {
	switch side {
	case SideLeft:
		return f.CreateLeft(path)
	case SideRight:
		return f.CreateRight(path)
	}
	return ErrBadSide
}

func (f *Facade) create(side int, path string) error {
	if f.closed {
		return ErrClosed
	}
	paths := f.paths
	paths[side] = path

	reply, err := f.sup.RequestReconfigure(f.ctx, paths[0], paths[1])
	if err != nil {
		return ErrClosed
	}
	f.paths = paths
	// queued behind any earlier reconfigure, so this one supersedes it
	f.settling = nil

	var res *Result
	timeout := time.NewTimer(f.openTimeout)
	defer timeout.Stop()
	select {
	case res = <-reply:
	case <-f.ctx.Done():
		return ErrClosed
	case <-timeout.C:
		f.abandon(side)
		return &OpenError{Side: sideNames[side], Path: path, Err: ErrOpenTimeout}
	}
	return f.apply(res, side)
}

// abandon drops side after its open timed out. The timed out reconfigure
// still completes and installs a worker for it, so another one is queued
// behind it with the paths the facade holds.
func (f *Facade) abandon(side int) {
	f.paths[side] = ""
	f.cursors[side] = nil
	next, err := f.sup.RequestReconfigure(f.ctx, f.paths[0], f.paths[1])
	if err != nil {
		return
	}
	f.settling = next
}

// settle applies the reconfigure queued by abandon once it is done
func (f *Facade) settle() {
	if f.settling == nil {
		return
	}
	select {
	case res := <-f.settling:
		f.settling = nil
		f.apply(res, -1)
	default:
	}
}

// apply rebuilds the cursors from the length probe of a reconfigure. A
// failure on side becomes an OpenError, failures on the other side are
// logged; both leave their side absent.
func (f *Facade) apply(res *Result, side int) error {
	// results of the old workers are meaningless now
	f.discardResults()
	f.lastInput = make(map[string]argTuple)
	f.lastResult = make(map[string]*Result)

	var openErr error
	for i, r := range res.Output.Pair {
		switch {
		case r == nil:
			f.cursors[i] = nil
		case r.Err != nil:
			f.cursors[i] = nil
			if f.paths[i] != "" && i == side {
				openErr = &OpenError{Side: sideNames[i], Path: f.paths[i], Err: r.Err}
			} else {
				f.logger.Error("%s source %s lost on reopen: %v", sideNames[i], f.paths[i], r.Err)
			}
			f.paths[i] = ""
		default:
			n := r.Value.Length
			if old := f.cursors[i]; old != nil && old.Length() == n {
				f.cursors[i] = playback.NewPositionAt(n, old.Index())
			} else {
				f.cursors[i] = playback.NewPosition(n)
			}
		}
	}

	if !f.canvas.IsZero() {
		f.UpdateCanvasSize(f.canvas)
	}
	return openErr
}

func (f *Facade) discardResults() {
	for {
		select {
		case <-f.sup.Results():
		default:
			return
		}
	}
}

func (f *Facade) frameArgs() (left, right *worker.Args) {
	if c := f.cursors[0]; c != nil {
		left = &worker.Args{Index: c.Index()}
	}
	if c := f.cursors[1]; c != nil {
		right = &worker.Args{Index: c.Index()}
	}
	return left, right
}

func (f *Facade) overlayText() []string {
	if f.overlay == nil {
		return nil
	}
	l, r := -1, -1
	if c := f.cursors[0]; c != nil {
		l = c.Index()
	}
	if c := f.cursors[1]; c != nil {
		r = c.Index()
	}
	return f.overlay(l, r)
}

func (f *Facade) dispatch(cmd Command) error {
	if err := f.sup.Dispatch(f.ctx, cmd); err != nil {
		return ErrClosed
	}
	f.lastInput[cmd.Name] = tupleOf(cmd.Left, cmd.Right)
	return nil
}

// drain stores every result that already arrived
func (f *Facade) drain() {
	for {
		select {
		case res := <-f.sup.Results():
			f.store(res)
		default:
			return
		}
	}
}

func (f *Facade) store(res *Result) {
	f.lastResult[res.Name] = res
}

// RequestFrame asks for the frame pair at the current cursors and returns
// the latest frame received so far. Only when no frame was ever received
// does it wait, for at most the configured number of poll intervals.
func (f *Facade) RequestFrame(updateCursor bool, canvas decoder.Size) (*Result, error) {
	if f.closed {
		return nil, ErrClosed
	}
	f.settle()
	left, right := f.frameArgs()
	if left == nil && right == nil {
		return nil, ErrNoSource
	}
	if !canvas.IsZero() {
		f.canvas = canvas
	}

	err := f.dispatch(Command{
		Name:     worker.CmdReadFrame,
		Left:     left,
		Right:    right,
		Coalesce: true,
		Priority: PriorityReadFrame,
		Combine:  &CombineSpec{Mode: f.mode, Canvas: f.canvas, Overlay: f.overlayText()},
	})
	if err != nil {
		return nil, err
	}
	if updateCursor {
		for _, c := range f.cursors {
			if c != nil {
				c.Shift(1)
			}
		}
	}

	f.drain()
	if res := f.lastResult[worker.CmdReadFrame]; res != nil {
		return res, nil
	}
	return f.bootstrap()
}

func (f *Facade) bootstrap() (*Result, error) {
	timer := time.NewTimer(f.poll)
	defer timer.Stop()

	for i := 0; i < f.attempts; i++ {
		select {
		case res := <-f.sup.Results():
			f.store(res)
			if res.Name == worker.CmdReadFrame {
				return res, nil
			}
			continue
		case <-f.ctx.Done():
			return nil, ErrClosed
		case <-timer.C:
			timer.Reset(f.poll)
		}
	}
	f.logger.Error("no frame after %d attempts", f.attempts)
	return nil, ErrBootstrap
}

// GetNextFrame returns the cached frame while it still matches the
// cursors and requests a new one otherwise or when updateCursor is set.
func (f *Facade) GetNextFrame(updateCursor bool, canvas decoder.Size) (*Result, error) {
	if f.closed {
		return nil, ErrClosed
	}
	f.settle()
	f.drain()

	cached := f.lastResult[worker.CmdReadFrame]
	sent, ok := f.lastInput[worker.CmdReadFrame]
	if updateCursor || cached == nil || !ok || sent != tupleOf(f.frameArgs()) {
		return f.RequestFrame(updateCursor, canvas)
	}
	return cached, nil
}

// HasPendingWork reports whether some dispatched command has not been
// answered with the args it was last sent with. It does not read results.
func (f *Facade) HasPendingWork() bool {
	for name, sent := range f.lastInput {
		res := f.lastResult[name]
		if res == nil || tupleOf(res.Left, res.Right) != sent {
			return true
		}
	}
	return false
}

// UpdateCanvasSize asks both workers to decode at a size fitting canvas
// and forgets which frame was last requested, so the next GetNextFrame
// decodes again at the new size.
func (f *Facade) UpdateCanvasSize(canvas decoder.Size) {
	if f.closed || canvas.IsZero() {
		return
	}
	f.canvas = canvas
	delete(f.lastInput, worker.CmdReadFrame)

	args := worker.Args{Canvas: canvas, WidthMultiplier: WidthMultiplier(f.mode)}
	cmd := Command{Name: worker.CmdResize, Coalesce: true, Priority: PriorityResize}
	if f.cursors[0] != nil {
		a := args
		cmd.Left = &a
	}
	if f.cursors[1] != nil {
		a := args
		cmd.Right = &a
	}
	if cmd.Left == nil && cmd.Right == nil {
		return
	}
	if err := f.dispatch(cmd); err != nil {
		f.logger.Debug("resize to %s: %v", canvas, err)
	}
}

// InvalidateFrame drops the frame cache key so the next GetNextFrame
// decodes again
func (f *Facade) InvalidateFrame() {
	delete(f.lastInput, worker.CmdReadFrame)
}

// SetMode switches the composition mode
func (f *Facade) SetMode(mode string) {
	if mode == f.mode {
		return
	}
	prev := f.mode
	f.mode = mode
	f.InvalidateFrame()
	if WidthMultiplier(prev) != WidthMultiplier(mode) && !f.canvas.IsZero() {
		f.UpdateCanvasSize(f.canvas)
	}
}

// Mode is the current composition mode
func (f *Facade) Mode() string { return f.mode }

// SetOverlay sets the text source for the overlay, nil for none
func (f *Facade) SetOverlay(fn OverlayFunc) {
	f.overlay = fn
	f.InvalidateFrame()
}

// Left is the left cursor, nil when no left source is open
func (f *Facade) Left() *playback.Position { return f.cursors[0] }

// Right is the right cursor, nil when no right source is open
func (f *Facade) Right() *playback.Position { return f.cursors[1] }

// Paths of the open sources, empty for an absent side
func (f *Facade) Paths() (left, right string) { return f.paths[0], f.paths[1] }

// Canvas is the last canvas size sent to the workers
func (f *Facade) Canvas() decoder.Size { return f.canvas }

// Workers returns stats of the running workers. Safe for concurrent use.
func (f *Facade) Workers() []worker.Stats {
	return f.sup.Workers()
}

// Close stops the supervisor and all workers
func (f *Facade) Close() {
	f.once.Do(func() {
		f.closed = true
		f.paths = [2]string{}
		f.cursors = [2]*playback.Position{}
		f.cancel()
		<-f.done
	})
}
