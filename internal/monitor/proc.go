package monitor

import (
	"fmt"
	"time"

	"github.com/prometheus/procfs"

	"github.com/wesleyorama2/crudbench/internal/config"
)

// ProcSampler samples a process through /proc.
//
// CPU utilisation is the process CPU time consumed since the previous sample
// divided by the wall time between them, so it can exceed 100 on multi-core
// hosts. The first sample reports 0.
type ProcSampler struct {
	pid  int
	proc procfs.Proc

	primed   bool
	lastCPU  float64
	lastWall time.Time
}

// NewProcSampler returns a sampler for pid. A pid that does not name a
// readable process is a configuration error.
func NewProcSampler(pid int) (*ProcSampler, error) {
	if pid <= 0 {
		return nil, &config.ValidationError{Field: "monitorPid", Message: fmt.Sprintf("invalid process id %d", pid)}
	}

	proc, err := procfs.NewProc(pid)
	if err != nil {
		return nil, &config.ValidationError{Field: "monitorPid", Message: fmt.Sprintf("cannot monitor process %d: %v", pid, err)}
	}
	if _, err := proc.Stat(); err != nil {
		return nil, &config.ValidationError{Field: "monitorPid", Message: fmt.Sprintf("cannot read stats of process %d: %v", pid, err)}
	}

	return &ProcSampler{pid: pid, proc: proc}, nil
}

// PID returns the monitored process id.
func (s *ProcSampler) PID() int {
	return s.pid
}

// Sample implements Sampler.
func (s *ProcSampler) Sample() (float64, uint64, error) {
	stat, err := s.proc.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("read stat of process %d: %w", s.pid, err)
	}

	now := time.Now()
	cpu := stat.CPUTime()

	var percent float64
	if s.primed {
		if wall := now.Sub(s.lastWall).Seconds(); wall > 0 {
			percent = (cpu - s.lastCPU) / wall * 100
		}
		if percent < 0 {
			percent = 0
		}
	}
	s.primed = true
	s.lastCPU = cpu
	s.lastWall = now

	rss := stat.ResidentMemory()
	if rss < 0 {
		rss = 0
	}
	return percent, uint64(rss), nil
}
