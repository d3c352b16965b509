// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

// Package player drives a Facade from a render loop: it plays both
// sources in step, keeps them aligned under the offset and holds the last
// composed picture for clients to fetch.
package player

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/ZSC714725/pairview/internal/compose"
	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/engine"
	"github.com/ZSC714725/pairview/internal/logger"
	"github.com/ZSC714725/pairview/internal/playback"
	"github.com/ZSC714725/pairview/internal/vqmt"
	"github.com/ZSC714725/pairview/internal/worker"

	"github.com/lithammer/shortuuid/v4"
)

// idleTick is the refresh period when not playing
const idleTick = time.Second / 24

var (
	ErrNotReady    = errors.New("player: both sources must be open")
	ErrUnknownMode = errors.New("player: unknown view mode")
	ErrUnknownStat = errors.New("player: unknown metric")
)

// Config for a player
type Config struct {
	Facade   *engine.Facade
	Composer *compose.Composer
	Logger   logger.Logger
	Canvas   decoder.Size
}

// Player serializes all access to its Facade behind one lock
type Player struct {
	id       string
	facade   *engine.Facade
	composer *compose.Composer
	logger   logger.Logger
	wake     chan struct{}

	lock        sync.Mutex
	paused      bool
	cyclePaused bool
	offset      int
	canvas      decoder.Size
	last        image.Image
	rendered    uint64
	lastErr     string
	metrics     *vqmt.Table
	enabled     []vqmt.Query
}

// New creates a paused player
func New(config Config) *Player {
	p := &Player{
		id:          shortuuid.New(),
		facade:      config.Facade,
		composer:    config.Composer,
		logger:      logger.OrNop(config.Logger),
		wake:        make(chan struct{}, 1),
		paused:      true,
		cyclePaused: true,
		canvas:      config.Canvas,
	}
	if p.composer == nil {
		p.composer = compose.New([3]uint8{255, 255, 0}, [2]float64{0, 1})
	}
	return p
}

// Run is the render loop. It returns when ctx is done.
func (p *Player) Run(ctx context.Context) {
	timer := time.NewTimer(idleTick)
	timer.Stop()
	defer timer.Stop()

	for {
		next, park := p.update()
		if park {
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
			}
			continue
		}

		timer.Reset(next)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-p.wake:
			timer.Stop()
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

func (p *Player) kick() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// update runs one step of the loop. Pausing is soft: while the workers
// still owe results the loop keeps refreshing, and it parks only once
// paused and idle.
func (p *Player) update() (next time.Duration, park bool) {
	p.lock.Lock()
	defer p.lock.Unlock()

	left, right := p.facade.Left(), p.facade.Right()
	idle := (left == nil && right == nil) || !p.facade.HasPendingWork()
	if p.paused && idle {
		p.nextFrame(false)
		// the render may have asked for a new frame; stay awake to show it
		if (left == nil && right == nil) || !p.facade.HasPendingWork() {
			p.cyclePaused = true
			return 0, true
		}
		return idleTick, false
	}

	next = idleTick
	if !p.paused && left != nil && right != nil {
		start := time.Now()
		delta, advanced := p.nextFrame(true)
		if !advanced {
			p.paused = true
		} else {
			next = time.Duration(delta*float64(time.Millisecond)) - time.Since(start)
			if next < 0 {
				next = 0
			}
		}
	} else {
		p.nextFrame(false)
	}
	p.cyclePaused = false
	return next, false
}

// nextFrame renders the current frame pair. With advance the cursors move
// on by one unless a stream is at its end. It returns the frame duration
// in ms and whether the cursors moved.
func (p *Player) nextFrame(advance bool) (float64, bool) {
	left, right := p.facade.Left(), p.facade.Right()
	if left == nil && right == nil {
		return 0, false
	}
	if left == nil || right == nil || left.IsEnd() || right.IsEnd() {
		advance = false
	}

	res, err := p.facade.GetNextFrame(advance, p.canvas)
	if err != nil {
		p.lastErr = err.Error()
		p.logger.Error("frame: %v", err)
		return 0, false
	}
	p.last = p.render(res)
	p.rendered++
	return duration(res), advance
}

func duration(res *engine.Result) float64 {
	if m := res.Output.Merged; m != nil {
		return m.DurationMs
	}
	for _, r := range res.Output.Pair {
		if r != nil && r.Err == nil && r.Value.Frame != nil {
			return r.Value.Frame.DurationMs
		}
	}
	return float64(idleTick / time.Millisecond)
}

// render draws a result. Failed and absent sides of a raw pair are black.
func (p *Player) render(res *engine.Result) image.Image {
	if m := res.Output.Merged; m != nil {
		return m.Image
	}
	var frames [2]*decoder.Frame
	for i, r := range res.Output.Pair {
		if r != nil && r.Err == nil {
			frames[i] = r.Value.Frame
		}
	}
	if frames[0] == nil && frames[1] == nil {
		return compose.Blank(p.canvas)
	}
	img, err := p.composer.Compose(frames[0], frames[1], engine.CombineSpec{Mode: p.facade.Mode(), Canvas: p.canvas})
	if err != nil {
		p.logger.Error("render: %v", err)
		return compose.Blank(p.canvas)
	}
	return img
}

// Open loads path on side. Once both sides are open playback starts.
func (p *Player) Open(side, path string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	defer p.kick()

	err := p.facade.Create(side, path)
	if err != nil {
		var openErr *engine.OpenError
		if !errors.As(err, &openErr) {
			return err
		}
		p.lastErr = err.Error()
	}
	if !p.canvas.IsZero() {
		p.facade.UpdateCanvasSize(p.canvas)
	}
	if p.bothOpen() {
		p.syncOffset()
		p.paused = false
	}
	return err
}

func (p *Player) bothOpen() bool {
	return p.facade.Left() != nil && p.facade.Right() != nil
}

// syncOffset aligns the cursors with the offset and adopts the offset
// that could actually be reached
func (p *Player) syncOffset() {
	if !p.bothOpen() {
		return
	}
	achieved := playback.Sync(p.facade.Left(), p.facade.Right(), p.offset)
	if achieved != p.offset {
		p.logger.Info("offset %d not reachable, using %d", p.offset, achieved)
		p.offset = achieved
	}
}

func (p *Player) Play() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.bothOpen() {
		return ErrNotReady
	}
	p.paused = false
	p.kick()
	return nil
}

func (p *Player) Pause() {
	p.lock.Lock()
	p.paused = true
	p.lock.Unlock()
}

// Toggle flips between play and pause and reports whether it now plays
func (p *Player) Toggle() (bool, error) {
	p.lock.Lock()
	paused := p.paused
	p.lock.Unlock()

	if paused {
		if err := p.Play(); err != nil {
			return false, err
		}
		return true, nil
	}
	p.Pause()
	return false, nil
}

// Step moves both cursors by delta frames
func (p *Player) Step(delta int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.bothOpen() {
		return ErrNotReady
	}
	p.facade.Left().Shift(delta)
	p.facade.Right().Shift(delta)
	p.syncOffset()
	p.kick()
	return nil
}

// Seek puts the left cursor at pos and the right one at pos+offset
func (p *Player) Seek(pos int) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if !p.bothOpen() {
		return ErrNotReady
	}
	p.facade.Left().SetIndex(pos)
	p.facade.Right().SetIndex(pos + p.offset)
	p.syncOffset()
	p.kick()
	return nil
}

// SetOffset asks for right - left == offset and returns what was reached
func (p *Player) SetOffset(offset int) int {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.offset = offset
	p.syncOffset()
	p.kick()
	return p.offset
}

// Resize sets the canvas the picture is fitted into
func (p *Player) Resize(size decoder.Size) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if size.IsZero() || size == p.canvas {
		return
	}
	p.canvas = size
	p.facade.UpdateCanvasSize(size)
	p.kick()
}

// SetMode selects split, sbs or chess
func (p *Player) SetMode(mode string) error {
	switch mode {
	case engine.ModeSplit, engine.ModeSBS, engine.ModeChess:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	p.facade.SetMode(mode)
	p.kick()
	return nil
}

// LoadMetrics reads a VQMT report. On failure the metrics table is
// emptied and the error returned.
func (p *Player) LoadMetrics(path string) error {
	table, err := vqmt.Load(path)
	p.lock.Lock()
	defer p.lock.Unlock()
	if err != nil {
		p.logger.Error("%v", err)
		p.metrics = nil
	} else {
		p.metrics = table
	}
	p.applyOverlay()
	p.kick()
	return err
}

// EnableMetrics selects the metrics shown over the picture by name
func (p *Player) EnableMetrics(names []string) error {
	queries := make([]vqmt.Query, 0, len(names))
	for _, name := range names {
		q, ok := vqmt.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownStat, name)
		}
		queries = append(queries, q)
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	p.enabled = queries
	p.applyOverlay()
	p.kick()
	return nil
}

func (p *Player) applyOverlay() {
	if len(p.enabled) == 0 {
		p.facade.SetOverlay(nil)
		return
	}
	table, queries := p.metrics, p.enabled
	p.facade.SetOverlay(func(left, right int) []string {
		return table.Lines(left, queries)
	})
}

// Title names the open sources
func (p *Player) Title() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.title()
}

func (p *Player) title() string {
	left, right := p.facade.Paths()
	return fmt.Sprintf("%s vs %s | PairView", baseName(left), baseName(right))
}

func baseName(path string) string {
	if path == "" {
		return "<None>"
	}
	if decoder.IsSynthetic(path) {
		return path
	}
	return filepath.Base(path)
}

// Frame returns the last rendered picture, nil before the first one
func (p *Player) Frame() image.Image {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.last
}

func (p *Player) Workers() []worker.Stats {
	return p.facade.Workers()
}

// Close stops the engine. Run must be stopped separately.
func (p *Player) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.paused = true
	p.facade.Close()
}
