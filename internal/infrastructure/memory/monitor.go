// Package memory reports process memory usage against a threshold.
package memory

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/v4/process"

	"NewsStream/internal/ports"
)

const bytesPerMB = 1024 * 1024

// RSSReader returns the resident set size in bytes.
type RSSReader func() (uint64, error)

// Monitor compares process RSS with a fixed threshold.
type Monitor struct {
	thresholdBytes uint64
	read           RSSReader
	logger         *slog.Logger
}

var _ ports.MemoryGuard = (*Monitor)(nil)

// NewMonitor watches the current process.
func NewMonitor(thresholdMB int, logger *slog.Logger) (*Monitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("inspect process: %w", err)
	}
	read := func() (uint64, error) {
		info, err := proc.MemoryInfo()
		if err != nil {
			return 0, err
		}
		return info.RSS, nil
	}
	return NewMonitorWithReader(thresholdMB, read, logger), nil
}

// NewMonitorWithReader uses read instead of inspecting the process.
func NewMonitorWithReader(thresholdMB int, read RSSReader, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if thresholdMB <= 0 {
		thresholdMB = 450
	}
	return &Monitor{
		thresholdBytes: uint64(thresholdMB) * bytesPerMB,
		read:           read,
		logger:         logger,
	}
}

// Allow reports whether usage is at or below the threshold. A failed read
// allows the cycle.
func (m *Monitor) Allow() bool {
	rss, err := m.read()
	if err != nil {
		m.logger.Warn("memory usage unavailable", "error", err)
		return true
	}
	if rss > m.thresholdBytes {
		m.logger.Warn("high memory usage", "usage_mb", fmt.Sprintf("%.1f", float64(rss)/bytesPerMB))
		return false
	}
	return true
}

// UsageMB returns the current RSS in megabytes, or 0 when unavailable.
func (m *Monitor) UsageMB() float64 {
	rss, err := m.read()
	if err != nil {
		return 0
	}
	return float64(rss) / bytesPerMB
}
