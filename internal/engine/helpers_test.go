// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZSC714725/pairview/internal/decoder"
	"github.com/ZSC714725/pairview/internal/worker"
)

// recorder collects what every recording decoder did, keyed by source path.
// Paths look like "rec:<name>/<length>"; names starting with "flaky"
// fail every read and "bad:" paths fail to open.
type recorder struct {
	mu      sync.Mutex
	ops     map[string][]string
	blocked map[string]int
	gate    chan struct{}
}

func newRecorder() *recorder {
	return &recorder{ops: make(map[string][]string), blocked: make(map[string]int)}
}

func (r *recorder) newDecoder() decoder.Decoder {
	return &recordingDecoder{rec: r, size: decoder.Size{W: 16, H: 16}}
}

func (r *recorder) log(path, op string) {
	r.mu.Lock()
	r.ops[path] = append(r.ops[path], op)
	r.mu.Unlock()
}

func (r *recorder) Ops(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops[path]...)
}

func (r *recorder) count(path, prefix string) int {
	n := 0
	for _, op := range r.Ops(path) {
		if strings.HasPrefix(op, prefix) {
			n++
		}
	}
	return n
}

// Hold makes every following read block until Release
func (r *recorder) Hold() {
	r.mu.Lock()
	r.gate = make(chan struct{})
	r.mu.Unlock()
}

func (r *recorder) Release() {
	r.mu.Lock()
	if r.gate != nil {
		close(r.gate)
		r.gate = nil
	}
	r.mu.Unlock()
}

func (r *recorder) Blocked(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.blocked[path]
}

func (r *recorder) wait(path string) {
	r.mu.Lock()
	gate := r.gate
	if gate != nil {
		r.blocked[path]++
	}
	r.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

type recordingDecoder struct {
	rec    *recorder
	path   string
	length int
	size   decoder.Size
}

func (d *recordingDecoder) Open(path string) (int, error) {
	if strings.HasPrefix(path, "bad:") {
		return 0, fmt.Errorf("%w: %s", decoder.ErrInvalidPath, path)
	}
	_, n, ok := strings.Cut(path, "/")
	if !ok {
		return 0, decoder.ErrInvalidPath
	}
	length, err := strconv.Atoi(n)
	if err != nil {
		return 0, err
	}
	d.path, d.length = path, length
	d.rec.log(path, "open")
	return length, nil
}

func (d *recordingDecoder) ReadFrame(index int) (*decoder.Frame, error) {
	d.rec.log(d.path, fmt.Sprintf("read:%d", index))
	d.rec.wait(d.path)
	if strings.HasPrefix(d.path, "rec:flaky") {
		return nil, errors.New("corrupt frame")
	}
	w, h := d.size.W, d.size.H
	return &decoder.Frame{Width: w, Height: h, Pix: make([]byte, w*h*3), DurationMs: 40}, nil
}

func (d *recordingDecoder) Resize(canvas decoder.Size, widthMultiplier float64) error {
	d.size = decoder.Size{W: int(float64(canvas.W) * widthMultiplier), H: canvas.H}
	d.rec.log(d.path, fmt.Sprintf("resize:%s", d.size))
	return nil
}

func (d *recordingDecoder) Close() error { return nil }

type stubComposer struct {
	calls atomic.Int32
	last  atomic.Value
}

func (c *stubComposer) Compose(left, right *decoder.Frame, spec CombineSpec) (image.Image, error) {
	c.calls.Add(1)
	c.last.Store(spec)
	f := left
	if f == nil {
		f = right
	}
	return image.NewRGBA(image.Rect(0, 0, f.Width, f.Height)), nil
}

func (r *recorder) spawner() worker.Spawner {
	return &worker.LocalSpawner{NewDecoder: r.newDecoder, Poll: 2 * time.Millisecond}
}

// lossyHandle answers the length probe and then disappears
type lossyHandle struct {
	mu     sync.Mutex
	sent   []worker.Request
	served int
}

func (h *lossyHandle) ID() string { return "lossy" }

func (h *lossyHandle) Execute(req worker.Request) error {
	h.mu.Lock()
	h.sent = append(h.sent, req)
	h.mu.Unlock()
	return nil
}

func (h *lossyHandle) AwaitResult(ctx context.Context) (worker.Reply, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.served > 0 {
		return worker.Reply{}, false
	}
	h.served++
	return worker.Reply{Name: worker.CmdLength, Value: worker.Value{Length: 10}}, true
}

func (h *lossyHandle) Terminate()          {}
func (h *lossyHandle) Alive() bool         { return false }
func (h *lossyHandle) Stats() worker.Stats { return worker.Stats{ID: "lossy"} }

type lossySpawner struct {
	fallback worker.Spawner
}

func (s lossySpawner) Spawn(side, source string) (worker.Handle, error) {
	if side == SideRight {
		return &lossyHandle{}, nil
	}
	return s.fallback.Spawn(side, source)
}

// slowOpener waits before opening "slow:" paths, which then open as the
// rest of the path
type slowOpener struct {
	decoder.Decoder
	delay time.Duration
}

func slowSpawner(delay time.Duration) worker.Spawner {
	return &worker.LocalSpawner{
		NewDecoder: func() decoder.Decoder {
			return &slowOpener{Decoder: decoder.NewSynthetic(), delay: delay}
		},
		Poll: 2 * time.Millisecond,
	}
}

func (d *slowOpener) Open(path string) (int, error) {
	if rest, ok := strings.CutPrefix(path, "slow:"); ok {
		time.Sleep(d.delay)
		path = rest
	}
	return d.Decoder.Open(path)
}
