// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package resource implements the three FIFO-fair counting
// semaphores (memory bytes, S3 connections, CPU tasks) that bound
// concurrent request processing, plus the default-capacity discovery
// that reads /proc/meminfo and the cgroupv2 controllers.
package resource

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/cgroup"
	"github.com/stackhpc/activestorage-go/metrics"
)

// unbounded marks a semaphore whose capacity is "unset": admission
// against it is always a no-op.
const unbounded = -1

// sem wraps a weighted semaphore with an explicit "unbounded" state,
// since semaphore.Weighted has no way to represent infinite capacity.
type sem struct {
	w        *semaphore.Weighted
	capacity int64 // unbounded if < 0
}

func newSem(capacity int64) sem {
	if capacity < 0 {
		return sem{capacity: unbounded}
	}
	return sem{w: semaphore.NewWeighted(capacity), capacity: capacity}
}

// tryAcquire attempts to admit n units without blocking, used for
// memory admission, where a request that cannot be satisfied must
// fail fast rather than wait (spec: "admission fails ... rather than
// blocking forever").
func (s sem) tryAcquire(n int64) bool {
	if s.capacity == unbounded {
		return true
	}
	if n > s.capacity {
		return false
	}
	return s.w.TryAcquire(n)
}

// acquire blocks (respecting ctx) until n units are admitted.
func (s sem) acquire(ctx context.Context, n int64) error {
	if s.capacity == unbounded {
		return nil
	}
	return s.w.Acquire(ctx, n)
}

func (s sem) release(n int64) {
	if s.capacity == unbounded {
		return
	}
	s.w.Release(n)
}

// Config carries the configured (or defaulted) capacities for the
// three resources. A capacity of 0 or below means "unbounded".
type Config struct {
	MemoryBytes int64
	S3Conns     int64
	CPUTasks    int64
}

// Manager owns the three semaphores for the server's lifetime.
type Manager struct {
	memory sem
	s3Conn sem
	cpu    sem
}

// NewManager constructs a Manager from cfg. Zero or negative fields
// are treated as unbounded.
func NewManager(cfg Config) *Manager {
	return &Manager{
		memory: newSem(boundedOrInfinite(cfg.MemoryBytes)),
		s3Conn: newSem(boundedOrInfinite(cfg.S3Conns)),
		cpu:    newSem(boundedOrInfinite(cfg.CPUTasks)),
	}
}

func boundedOrInfinite(n int64) int64 {
	if n <= 0 {
		return unbounded
	}
	return n
}

// Memory attempts to admit nBytes of memory immediately. It returns
// a release function to call once the buffer is no longer needed, or
// a MemoryLimitExceeded error if nBytes exceeds capacity or the
// semaphore is momentarily exhausted.
func (m *Manager) Memory(nBytes int64) (release func(), err error) {
	if nBytes < 0 {
		nBytes = 0
	}
	if !m.memory.tryAcquire(nBytes) {
		return nil, apierr.New(apierr.MemoryLimitExceeded,
			fmt.Sprintf("cannot admit %d bytes against configured memory capacity", nBytes))
	}
	metrics.MemoryInUse.Add(float64(nBytes))
	return func() {
		m.memory.release(nBytes)
		metrics.MemoryInUse.Sub(float64(nBytes))
	}, nil
}

// S3Connection blocks (respecting ctx) until an S3 connection permit
// is available, and returns a release function.
func (m *Manager) S3Connection(ctx context.Context) (release func(), err error) {
	if err := m.s3Conn.acquire(ctx, 1); err != nil {
		return nil, err
	}
	metrics.S3ConnectionsInUse.Inc()
	return func() {
		m.s3Conn.release(1)
		metrics.S3ConnectionsInUse.Dec()
	}, nil
}

// CPUTask blocks (respecting ctx) until a CPU-task permit is
// available, and returns a release function. Callers that dispatch
// into a dedicated worker pool instead should not call this.
func (m *Manager) CPUTask(ctx context.Context) (release func(), err error) {
	if err := m.cpu.acquire(ctx, 1); err != nil {
		return nil, err
	}
	metrics.CPUTasksInUse.Inc()
	return func() {
		m.cpu.release(1)
		metrics.CPUTasksInUse.Dec()
	}, nil
}

// DefaultCPUTasks returns runtime.NumCPU()-1 (minimum 1), clamped to
// the cgroupv2 cpu.max quota of the current process's cgroup when
// that information is available.
func DefaultCPUTasks() int64 {
	n := runtime.NumCPU() - 1
	if n < 1 {
		n = 1
	}
	if lim, ok := cgroupLimits(); ok {
		if cpus, ok := lim.CPULimit(); ok && cpus < n {
			n = cpus
		}
	}
	return int64(n)
}

// DefaultMemoryBytes returns a conservative default memory capacity:
// the cgroupv2 memory.max of the current process's cgroup if set,
// otherwise a fraction of total host DRAM from /proc/meminfo, or 0
// ("unbounded") if neither is available.
func DefaultMemoryBytes() int64 {
	if lim, ok := cgroupLimits(); ok && lim.MemoryMax > 0 {
		return lim.MemoryMax
	}
	total, err := hostMemTotal()
	if err != nil || total <= 0 {
		return 0
	}
	// Leave headroom for the process's own non-request-scoped
	// memory (binary, goroutine stacks, connection buffers).
	return total * 3 / 4
}

func cgroupLimits() (cgroup.Limits, bool) {
	self, err := cgroup.Self()
	if err != nil {
		return cgroup.Limits{}, false
	}
	lim, err := self.ReadLimits()
	if err != nil {
		return cgroup.Limits{}, false
	}
	return lim, true
}
