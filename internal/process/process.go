// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具
//
// Package process wraps exec.Cmd for a decode worker child process: it owns
// the stdin/stdout pipes, captures stderr into a bounded log and tracks the
// lifecycle state so the supervisor can ask whether the child is still alive.

package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"
)

// Process represents a child process with piped stdin/stdout
type Process interface {
	Start() error
	Kill(wait bool) error
	IsRunning() bool
	Status() Status
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
	Log() []Line
}

// Config for a process
type Config struct {
	Binary        string
	Args          []string
	Env           []string
	LogLines      int
	Sampler       Sampler
	OnExit        func(state string)
	OnStateChange func(from, to string)
	Logger        Logger
}

// Status of a process
type Status struct {
	State      string
	States     States
	Pid        int
	Duration   time.Duration
	Time       time.Time
	CPU        float64
	Memory     uint64
	PeakMemory uint64
}

// States cumulative counts
type States struct {
	Starting uint64
	Running  uint64
	Finished uint64
	Failed   uint64
	Killed   uint64
}

// Logger interface
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type stateType string

const (
	stateIdle     stateType = "idle"
	stateStarting stateType = "starting"
	stateRunning  stateType = "running"
	stateFinished stateType = "finished"
	stateFailed   stateType = "failed"
	stateKilled   stateType = "killed"
)

func (s stateType) String() string { return string(s) }

func (s stateType) IsRunning() bool {
	return s == stateStarting || s == stateRunning
}

type process struct {
	binary string
	args   []string
	env    []string
	cmd    *exec.Cmd
	pid    int
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	state struct {
		state  stateType
		time   time.Time
		states States
		killed bool
		lock   sync.Mutex
	}
	exited        chan struct{}
	log           *logRing
	logger        Logger
	sampler       Sampler
	onExit        func(state string)
	onStateChange func(from, to string)
}

// New creates a new process. It does not start it.
func New(config Config) (Process, error) {
	if len(config.Binary) == 0 {
		return nil, fmt.Errorf("no valid binary given")
	}

	p := &process{
		binary:        config.Binary,
		args:          config.Args,
		env:           config.Env,
		exited:        make(chan struct{}),
		log:           newRing(config.LogLines),
		logger:        config.Logger,
		sampler:       config.Sampler,
		onExit:        config.OnExit,
		onStateChange: config.OnStateChange,
	}
	if p.logger == nil {
		p.logger = &nopLogger{}
	}
	if p.sampler == nil {
		p.sampler = NewSysSampler()
	}
	p.state.state = stateIdle
	p.state.time = time.Now()
	return p, nil
}

func (p *process) setState(state stateType) error {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	prev := p.state.state
	ok := false

	switch prev {
	case stateIdle:
		ok = state == stateStarting
	case stateStarting:
		ok = state == stateRunning || state == stateFailed
	case stateRunning:
		ok = state == stateFinished || state == stateFailed || state == stateKilled
	}
	if !ok {
		return fmt.Errorf("can't change from %s to %s", prev, state)
	}

	p.state.state = state
	p.state.time = time.Now()
	switch state {
	case stateStarting:
		p.state.states.Starting++
	case stateRunning:
		p.state.states.Running++
	case stateFinished:
		p.state.states.Finished++
	case stateFailed:
		p.state.states.Failed++
	case stateKilled:
		p.state.states.Killed++
	}

	if p.onStateChange != nil {
		go p.onStateChange(prev.String(), state.String())
	}
	return nil
}

func (p *process) getState() stateType {
	p.state.lock.Lock()
	defer p.state.lock.Unlock()
	return p.state.state
}

func (p *process) IsRunning() bool {
	return p.getState().IsRunning()
}

func (p *process) Status() Status {
	usage := p.sampler.Sample()

	p.state.lock.Lock()
	defer p.state.lock.Unlock()

	return Status{
		State:      p.state.state.String(),
		States:     p.state.states,
		Pid:        p.pid,
		Duration:   time.Since(p.state.time),
		Time:       p.state.time,
		CPU:        usage.CPU,
		Memory:     usage.Memory,
		PeakMemory: usage.PeakMemory,
	}
}

func (p *process) Stdin() io.WriteCloser { return p.stdin }
func (p *process) Stdout() io.ReadCloser { return p.stdout }
func (p *process) Log() []Line           { return p.log.Lines() }

func (p *process) Start() error {
	if err := p.setState(stateStarting); err != nil {
		return err
	}

	var err error
	p.cmd = exec.Command(p.binary, p.args...)
	p.cmd.Env = append(os.Environ(), p.env...)

	if p.stdin, err = p.cmd.StdinPipe(); err != nil {
		return p.fail(err)
	}
	// stdout is a plain os.Pipe so that Wait does not close our read end
	// before the last reply written by the child has been consumed
	pr, pw, err := os.Pipe()
	if err != nil {
		return p.fail(err)
	}
	p.cmd.Stdout = pw
	if p.stderr, err = p.cmd.StderrPipe(); err != nil {
		pr.Close()
		pw.Close()
		return p.fail(err)
	}
	if err := p.cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return p.fail(err)
	}
	pw.Close()
	p.stdout = pr

	p.pid = p.cmd.Process.Pid
	if err := p.sampler.Start(p.pid); err != nil {
		p.logger.Debug("resource sampler for pid %d: %v", p.pid, err)
	}
	p.setState(stateRunning)
	p.logger.Debug("started %s pid=%d", p.binary, p.pid)

	go p.reader()
	return nil
}

func (p *process) fail(err error) error {
	p.log.Append(err.Error())
	p.setState(stateFailed)
	close(p.exited)
	return err
}

// Kill sends SIGKILL. With wait it blocks until the child has been reaped.
func (p *process) Kill(wait bool) error {
	if !p.IsRunning() {
		return nil
	}

	p.state.lock.Lock()
	p.state.killed = true
	p.state.lock.Unlock()

	err := p.cmd.Process.Kill()
	if err != nil {
		p.log.Append(err.Error())
		return err
	}
	if wait {
		<-p.exited
	}
	return nil
}

func (p *process) reader() {
	scanner := bufio.NewScanner(p.stderr)
	scanner.Split(scanLine)
	for scanner.Scan() {
		line := scanner.Text()
		p.log.Append(line)
		p.logger.Debug("stderr: %s", line)
	}
	p.waiter()
}

func (p *process) waiter() {
	err := p.cmd.Wait()

	p.state.lock.Lock()
	killed := p.state.killed
	p.state.lock.Unlock()

	var next stateType
	switch {
	case killed:
		next = stateKilled
	case err == nil:
		next = stateFinished
	default:
		next = stateFailed
		if exiterr, ok := err.(*exec.ExitError); ok {
			if status, ok := exiterr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
				next = stateKilled
			}
		}
		p.log.Append(err.Error())
	}
	p.setState(next)
	p.sampler.Stop()
	close(p.exited)

	if p.onExit != nil {
		go p.onExit(next.String())
	}
}

func scanLine(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := 0
	for start < len(data) {
		r, w := utf8.DecodeRune(data[start:])
		if r != '\n' && r != '\r' {
			break
		}
		start += w
	}

	for i := start; i < len(data); {
		r, w := utf8.DecodeRune(data[i:])
		if r == '\n' || r == '\r' {
			return i + w, data[start:i], nil
		}
		i += w
	}

	if atEOF && len(data) > start {
		return len(data), data[start:], nil
	}
	return start, nil, nil
}

type nopLogger struct{}

func (l *nopLogger) Info(format string, args ...interface{})  {}
func (l *nopLogger) Error(format string, args ...interface{}) {}
func (l *nopLogger) Debug(format string, args ...interface{}) {}
