// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"context"
	"errors"
	"image"
	"sort"
	"sync"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/logger"
	"github.com/ZSC714725/pairview/internal/worker"
)

// Composer merges two frames. Either frame may be nil for an absent side.
type Composer interface {
	Compose(left, right *decoder.Frame, spec CombineSpec) (image.Image, error)
}

// SupervisorConfig for a supervisor
type SupervisorConfig struct {
	Spawner      worker.Spawner
	Composer     Composer
	Observer     Observer
	Logger       logger.Logger
	PollInterval time.Duration
	QueueSize    int
}

// Supervisor owns up to two workers and runs commands against both of
// them in lockstep. Only the Run goroutine touches the workers and the
// pending table; other goroutines talk to it through Dispatch,
// RequestReconfigure and Results.
type Supervisor struct {
	spawner  worker.Spawner
	composer Composer
	observer Observer
	logger   logger.Logger
	poll     time.Duration

	inbound chan message
	results chan *Result
	pending map[string]*pendingCommand

	handles struct {
		pair [2]worker.Handle
		lock sync.RWMutex
	}
}

type pendingCommand struct {
	cmd Command
}

type reconfigure struct {
	paths [2]string
	reply chan *Result
}

type message struct {
	cmd         *Command
	reconfigure *reconfigure
}

// NewSupervisor creates a supervisor. Call Run to start it.
func NewSupervisor(config SupervisorConfig) *Supervisor {
	s := &Supervisor{
		spawner:  config.Spawner,
		composer: config.Composer,
		observer: config.Observer,
		logger:   logger.OrNop(config.Logger),
		poll:     config.PollInterval,
		pending:  make(map[string]*pendingCommand),
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.poll <= 0 {
		s.poll = 50 * time.Millisecond
	}
	size := config.QueueSize
	if size <= 0 {
		size = 256
	}
	s.inbound = make(chan message, size)
	s.results = make(chan *Result, size)
	return s
}

// Dispatch queues cmd for the scheduler loop
func (s *Supervisor) Dispatch(ctx context.Context, cmd Command) error {
	s.observer.CommandQueued(cmd.Name, cmd.Coalesce)
	select {
	case s.inbound <- message{cmd: &cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestReconfigure queues a reconfigure. The returned channel receives
// the length probe result once the new workers are up.
func (s *Supervisor) RequestReconfigure(ctx context.Context, left, right string) (<-chan *Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc := &reconfigure{paths: [2]string{left, right}, reply: make(chan *Result, 1)}
	select {
	case s.inbound <- message{reconfigure: rc}:
		return rc.reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Results delivers the output of every executed command
func (s *Supervisor) Results() <-chan *Result {
	return s.results
}

// Workers returns the stats of the present workers
func (s *Supervisor) Workers() []worker.Stats {
	s.handles.lock.RLock()
	defer s.handles.lock.RUnlock()

	stats := []worker.Stats{}
	for _, h := range s.handles.pair {
		if h != nil {
			stats = append(stats, h.Stats())
		}
	}
	return stats
}

// Run is the scheduler loop. It returns when ctx is done and terminates
// all workers on the way out.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.teardown()

	timer := time.NewTimer(s.poll)
	defer timer.Stop()

	for {
		if len(s.pending) == 0 {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.poll)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg := <-s.inbound:
				s.handle(ctx, msg)
			case <-timer.C:
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.inbound:
			s.handle(ctx, msg)
		default:
			s.runNext(ctx)
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, msg message) {
	switch {
	case msg.reconfigure != nil:
		res := s.Reconfigure(ctx, msg.reconfigure.paths[0], msg.reconfigure.paths[1])
		msg.reconfigure.reply <- res
	case msg.cmd.Coalesce:
		if _, ok := s.pending[msg.cmd.Name]; ok {
			s.observer.CommandCoalesced(msg.cmd.Name)
		}
		s.pending[msg.cmd.Name] = &pendingCommand{cmd: *msg.cmd}
		s.observer.PendingChanged(len(s.pending))
	default:
		s.publish(s.Execute(ctx, *msg.cmd))
	}
}

// runNext executes the pending command with the highest priority. Ties
// go to the smallest name.
func (s *Supervisor) runNext(ctx context.Context) {
	names := make([]string, 0, len(s.pending))
	for name := range s.pending {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		pi, pj := s.pending[names[i]].cmd.Priority, s.pending[names[j]].cmd.Priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})

	p := s.pending[names[0]]
	delete(s.pending, names[0])
	s.observer.PendingChanged(len(s.pending))
	s.publish(s.Execute(ctx, p.cmd))
}

// publish never blocks the loop; when nobody drains the results the
// oldest one is dropped.
func (s *Supervisor) publish(res *Result) {
	for {
		select {
		case s.results <- res:
			return
		default:
		}
		select {
		case old := <-s.results:
			s.logger.Debug("dropping undelivered %s result", old.Name)
		default:
		}
	}
}

// Execute runs cmd against the present workers that have args in cmd and
// waits for their replies. Replies are collected as values; a worker
// that goes away yields worker.ErrWorkerLost for its side.
func (s *Supervisor) Execute(ctx context.Context, cmd Command) *Result {
	start := time.Now()
	res := &Result{Name: cmd.Name, Left: cmd.Left, Right: cmd.Right}

	s.handles.lock.RLock()
	handles := s.handles.pair
	s.handles.lock.RUnlock()

	args := cmd.args()
	var sent [2]bool
	for i, h := range handles {
		// a side without args is absent for this command even when a
		// worker is up for it
		if h == nil || args[i] == nil {
			continue
		}
		req := worker.Request{Name: cmd.Name, Args: *args[i]}
		// a worker that already exited may still have its last reply
		// buffered, e.g. the report of a failed open
		if err := h.Execute(req); err != nil && !errors.Is(err, worker.ErrWorkerGone) {
			res.Output.Pair[i] = &SideResult{Err: err}
			continue
		}
		sent[i] = true
	}

	for i, h := range handles {
		if !sent[i] {
			continue
		}
		rep, ok := h.AwaitResult(ctx)
		if !ok {
			res.Output.Pair[i] = &SideResult{Err: worker.ErrWorkerLost}
			continue
		}
		res.Output.Pair[i] = &SideResult{Value: rep.Value, Err: rep.Err()}
	}

	for i, r := range res.Output.Pair {
		if r.Failed() {
			s.observer.SideFailed(sideNames[i], cmd.Name)
			s.logger.Debug("%s %s failed: %v", sideNames[i], cmd.Name, r.Err)
		}
	}

	if cmd.Combine != nil && !res.Output.Failed() {
		s.combine(res, *cmd.Combine)
	}
	s.observer.CommandExecuted(cmd.Name, time.Since(start))
	return res
}

func (s *Supervisor) combine(res *Result, spec CombineSpec) {
	if s.composer == nil {
		return
	}
	var frames [2]*decoder.Frame
	for i, r := range res.Output.Pair {
		if r != nil {
			frames[i] = r.Value.Frame
		}
	}
	if frames[0] == nil && frames[1] == nil {
		return
	}

	img, err := s.composer.Compose(frames[0], frames[1], spec)
	if err != nil {
		res.Output.Err = err
		return
	}
	m := &Merged{Image: img}
	if frames[0] != nil {
		m.DurationMs = frames[0].DurationMs
	} else {
		m.DurationMs = frames[1].DurationMs
	}
	res.Output.Merged = m
}

// Reconfigure replaces both workers and probes their lengths. A side that
// fails to spawn or to report a length is torn down and left absent with
// the failure as its result. Pending commands are discarded.
func (s *Supervisor) Reconfigure(ctx context.Context, left, right string) *Result {
	s.teardown()
	if len(s.pending) > 0 {
		s.logger.Debug("discarding %d pending commands", len(s.pending))
		s.pending = make(map[string]*pendingCommand)
		s.observer.PendingChanged(0)
	}

	paths := [2]string{left, right}
	var spawnErr [2]error
	var handles [2]worker.Handle
	for i, path := range paths {
		if path == "" {
			continue
		}
		h, err := s.spawner.Spawn(sideNames[i], path)
		if err != nil {
			s.logger.Error("spawn %s worker for %s: %v", sideNames[i], path, err)
			spawnErr[i] = err
			continue
		}
		handles[i] = h
	}
	s.setHandles(handles)

	cmd := Command{Name: worker.CmdLength}
	if left != "" {
		cmd.Left = &worker.Args{Path: left}
	}
	if right != "" {
		cmd.Right = &worker.Args{Path: right}
	}
	res := s.Execute(ctx, cmd)

	for i := range handles {
		if spawnErr[i] != nil {
			res.Output.Pair[i] = &SideResult{Err: spawnErr[i]}
		}
		if r := res.Output.Pair[i]; r.Failed() && handles[i] != nil {
			s.logger.Error("%s worker for %s: %v", sideNames[i], paths[i], r.Err)
			handles[i].Terminate()
			handles[i] = nil
		}
	}
	s.setHandles(handles)
	return res
}

func (s *Supervisor) setHandles(pair [2]worker.Handle) {
	s.handles.lock.Lock()
	s.handles.pair = pair
	s.handles.lock.Unlock()
}

func (s *Supervisor) teardown() {
	s.handles.lock.Lock()
	pair := s.handles.pair
	s.handles.pair = [2]worker.Handle{}
	s.handles.lock.Unlock()

	for _, h := range pair {
		if h == nil {
			continue
		}
		h.Execute(worker.Request{Name: worker.CmdQuit})
		h.Terminate()
	}
}
