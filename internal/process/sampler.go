// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// PairView - 双路视频同步对比播放工具

package process

import (
	"sync"

	gopsutil "github.com/shirou/gopsutil/v3/process"
)

// Usage is one resource reading of a worker process
type Usage struct {
	CPU        float64
	Memory     uint64
	PeakMemory uint64
}

// Sampler reads the resource usage of a running pid
type Sampler interface {
	Start(pid int) error
	Stop()
	Sample() Usage
}

type nullSampler struct{}

// NewNullSampler returns a sampler that always reads zero
func NewNullSampler() Sampler { return nullSampler{} }

func (nullSampler) Start(int) error { return nil }
func (nullSampler) Stop()           {}
func (nullSampler) Sample() Usage   { return Usage{} }

// sysSampler 通过 gopsutil 读取解码 worker 的 CPU 与常驻内存，并记录峰值
type sysSampler struct {
	lock sync.Mutex
	proc *gopsutil.Process
	peak uint64
}

// NewSysSampler 创建基于 gopsutil 的采样器
func NewSysSampler() Sampler {
	return &sysSampler{}
}

func (s *sysSampler) Start(pid int) error {
	proc, err := gopsutil.NewProcess(int32(pid))
	if err != nil {
		return err
	}
	s.lock.Lock()
	s.proc, s.peak = proc, 0
	s.lock.Unlock()
	return nil
}

func (s *sysSampler) Stop() {
	s.lock.Lock()
	s.proc = nil
	s.lock.Unlock()
}

// Sample keeps the peak across calls; after Stop only the peak remains
func (s *sysSampler) Sample() Usage {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.proc == nil {
		return Usage{PeakMemory: s.peak}
	}

	var u Usage
	if pct, err := s.proc.CPUPercent(); err == nil {
		u.CPU = pct
	}
	if mem, err := s.proc.MemoryInfo(); err == nil && mem != nil {
		u.Memory = mem.RSS
	}
	if u.Memory > s.peak {
		s.peak = u.Memory
	}
	u.PeakMemory = s.peak
	return u
}
