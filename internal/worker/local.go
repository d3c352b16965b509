// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/logger"
)

// LocalSpawner runs workers as goroutines. Each worker owns its decoder and
// talks to the supervisor only through channels; a panic ends that worker
// alone. A decode call in flight cannot be preempted, so Terminate only
// detaches from it.
type LocalSpawner struct {
	NewDecoder func() decoder.Decoder
	Poll       time.Duration
	Logger     logger.Logger
}

type localHandle struct {
	id       string
	side     string
	source   string
	started  time.Time
	poll     time.Duration
	requests chan Request
	replies  chan Reply
	cancel   context.CancelFunc
	done     chan struct{}

	state struct {
		state string
		lock  sync.Mutex
	}
}

func (s *LocalSpawner) Spawn(side, source string) (Handle, error) {
	if s.NewDecoder == nil {
		return nil, fmt.Errorf("local spawner: no decoder factory")
	}
	log := logger.OrNop(s.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	h := &localHandle{
		id:       newID(side),
		side:     side,
		source:   source,
		started:  time.Now(),
		poll:     s.Poll,
		requests: make(chan Request, 64),
		replies:  make(chan Reply, 64),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	h.setState("running")

	dec := s.NewDecoder()
	wlog := log.With(h.id)
	go func() {
		defer close(h.done)
		defer close(h.replies)
		defer func() {
			if r := recover(); r != nil {
				wlog.Error("worker crashed: %v", r)
				h.setState("failed")
			}
		}()

		err := Serve(ctx, dec, source, &localTransport{ctx: ctx, h: h}, wlog)
		switch {
		case ctx.Err() != nil:
			h.setState("killed")
		case err != nil:
			h.setState("failed")
		default:
			h.setState("finished")
		}
	}()
	return h, nil
}

type localTransport struct {
	ctx context.Context
	h   *localHandle
}

func (t *localTransport) Recv() (Request, error) {
	select {
	case req := <-t.h.requests:
		return req, nil
	case <-t.ctx.Done():
		return Request{}, t.ctx.Err()
	}
}

func (t *localTransport) Send(rep Reply) error {
	select {
	case t.h.replies <- rep:
		return nil
	case <-t.ctx.Done():
		return t.ctx.Err()
	}
}

func (h *localHandle) setState(state string) {
	h.state.lock.Lock()
	h.state.state = state
	h.state.lock.Unlock()
}

func (h *localHandle) ID() string { return h.id }

func (h *localHandle) Execute(req Request) error {
	if !h.Alive() {
		return ErrWorkerGone
	}
	select {
	case h.requests <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

func (h *localHandle) AwaitResult(ctx context.Context) (Reply, bool) {
	return await(ctx, h.replies, h.Alive, h.poll)
}

func (h *localHandle) Terminate() {
	h.cancel()
}

func (h *localHandle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

func (h *localHandle) Stats() Stats {
	h.state.lock.Lock()
	state := h.state.state
	h.state.lock.Unlock()

	return Stats{
		ID:        h.id,
		Side:      h.side,
		Source:    h.source,
		Isolation: "local",
		State:     state,
		Started:   h.started,
	}
}
