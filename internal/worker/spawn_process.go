// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package worker

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/ZSC714725/pairview/internal/logger"
	"github.com/ZSC714725/pairview/internal/process"
)

// ProcessSpawner runs every worker in its own OS process: Binary is
// started with Args followed by "--source <path>", requests go to its
// stdin and replies come back on its stdout.
type ProcessSpawner struct {
	Binary   string
	Args     []string
	Env      []string
	Poll     time.Duration
	LogLines int
	Logger   logger.Logger
	// Sampler overrides the resource sampler, mostly for tests
	Sampler func() process.Sampler
}

type processHandle struct {
	id      string
	side    string
	source  string
	started time.Time
	poll    time.Duration
	proc    process.Process
	conn    *Conn
	outbox  chan Request
	replies chan Reply
	stop    chan struct{}
	log     logger.Logger
}

// SelfSpawner re-executes the running binary with the worker subcommand
func SelfSpawner(args []string, poll time.Duration, log logger.Logger) (*ProcessSpawner, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return &ProcessSpawner{Binary: exe, Args: args, Poll: poll, Logger: log}, nil
}

func (s *ProcessSpawner) Spawn(side, source string) (Handle, error) {
	log := logger.OrNop(s.Logger)
	id := newID(side)

	var sampler process.Sampler
	if s.Sampler != nil {
		sampler = s.Sampler()
	}

	args := append(append([]string{}, s.Args...), "--source", source)
	wlog := log.With(id)
	proc, err := process.New(process.Config{
		Binary:   s.Binary,
		Args:     args,
		Env:      s.Env,
		LogLines: s.LogLines,
		Sampler:  sampler,
		Logger:   wlog,
		OnStateChange: func(from, to string) {
			wlog.Debug("state %s -> %s", from, to)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := proc.Start(); err != nil {
		return nil, err
	}

	h := &processHandle{
		id:      id,
		side:    side,
		source:  source,
		started: time.Now(),
		poll:    s.Poll,
		proc:    proc,
		conn:    NewConn(proc.Stdout(), proc.Stdin()),
		outbox:  make(chan Request, 64),
		replies: make(chan Reply, 64),
		stop:    make(chan struct{}),
		log:     wlog,
	}
	go h.writer()
	go h.reader()
	return h, nil
}

func (h *processHandle) writer() {
	for {
		select {
		case <-h.stop:
			return
		case req := <-h.outbox:
			if err := h.conn.Send(&req); err != nil {
				h.log.Error("send %s: %v", req.Name, err)
				return
			}
		}
	}
}

func (h *processHandle) reader() {
	defer close(h.replies)
	for {
		var rep Reply
		if err := h.conn.Recv(&rep); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				h.log.Debug("receive: %v", err)
			}
			return
		}
		select {
		case h.replies <- rep:
		case <-h.stop:
			return
		}
	}
}

func (h *processHandle) ID() string { return h.id }

func (h *processHandle) Execute(req Request) error {
	if !h.Alive() {
		return ErrWorkerGone
	}
	select {
	case h.outbox <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (h *processHandle) AwaitResult(ctx context.Context) (Reply, bool) {
	return await(ctx, h.replies, h.Alive, h.poll)
}

func (h *processHandle) Terminate() {
	select {
	case <-h.stop:
		return
	default:
		close(h.stop)
	}
	if err := h.proc.Kill(true); err != nil {
		h.log.Error("kill: %v", err)
	}
	h.proc.Stdin().Close()
	h.proc.Stdout().Close()
}

func (h *processHandle) Alive() bool {
	return h.proc.IsRunning()
}

func (h *processHandle) Stats() Stats {
	st := h.proc.Status()
	lines := h.proc.Log()
	log := make([]string, 0, len(lines))
	for _, l := range lines {
		log = append(log, l.Timestamp.Format("15:04:05.000")+" "+l.Data)
	}
	return Stats{
		ID:         h.id,
		Side:       h.side,
		Source:     h.source,
		Isolation:  "process",
		State:      st.State,
		Pid:        st.Pid,
		CPU:        st.CPU,
		Memory:     st.Memory,
		PeakMemory: st.PeakMemory,
		Started:    h.started,
		Log:        log,
	}
}
