package health

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
)

// MemoryCheckerConfig configures the host memory checker.
type MemoryCheckerConfig struct {
	// WarningThreshold is the fraction of used host memory that triggers
	// degraded status. Value should be between 0 and 1. Default: 0.8
	WarningThreshold float64

	// CriticalThreshold is the fraction of used host memory that triggers
	// unhealthy status. Value should be between 0 and 1. Default: 0.95
	CriticalThreshold float64
}

// MemoryChecker reports host memory pressure alongside Go allocator stats.
type MemoryChecker struct {
	config MemoryCheckerConfig
}

// NewMemoryChecker creates a new memory health checker.
func NewMemoryChecker(config MemoryCheckerConfig) *MemoryChecker {
	if config.WarningThreshold <= 0 || config.WarningThreshold >= 1 {
		config.WarningThreshold = 0.8
	}
	if config.CriticalThreshold <= 0 || config.CriticalThreshold >= 1 {
		config.CriticalThreshold = 0.95
	}
	if config.CriticalThreshold < config.WarningThreshold {
		config.CriticalThreshold = config.WarningThreshold
	}

	return &MemoryChecker{config: config}
}

// Name returns the name of this checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check performs the memory health check.
func (m *MemoryChecker) Check(ctx context.Context) Result {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Unhealthy("host memory stats unavailable", err)
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	details := map[string]any{
		"host_total_bytes":     vm.Total,
		"host_available_bytes": vm.Available,
		"host_used_percent":    vm.UsedPercent,
		"go_alloc_bytes":       stats.Alloc,
		"go_sys_bytes":         stats.Sys,
		"go_num_gc":            stats.NumGC,
		"goroutines":           runtime.NumGoroutine(),
	}

	usedRatio := vm.UsedPercent / 100

	if usedRatio >= m.config.CriticalThreshold {
		return Unhealthy(
			fmt.Sprintf("host memory critical: %.1f%% used", vm.UsedPercent),
			nil,
		).WithDetails(details)
	}
	if usedRatio >= m.config.WarningThreshold {
		return Degraded(
			fmt.Sprintf("host memory high: %.1f%% used", vm.UsedPercent),
		).WithDetails(details)
	}
	return Healthy(
		fmt.Sprintf("host memory normal: %.1f%% used", vm.UsedPercent),
	).WithDetails(details)
}

// DiskChecker reports disk usage for the filesystem holding a path,
// typically the allowed workspace root.
type DiskChecker struct {
	path              string
	warningThreshold  float64
	criticalThreshold float64
}

// NewDiskChecker creates a disk usage checker for the given path.
// Thresholds are fractions of used capacity; zero values use 0.85 and 0.95.
func NewDiskChecker(path string, warning, critical float64) *DiskChecker {
	if warning <= 0 || warning >= 1 {
		warning = 0.85
	}
	if critical <= 0 || critical >= 1 {
		critical = 0.95
	}
	return &DiskChecker{
		path:              path,
		warningThreshold:  warning,
		criticalThreshold: critical,
	}
}

// Name returns the name of this checker.
func (d *DiskChecker) Name() string {
	return "disk"
}

// Check performs the disk usage check.
func (d *DiskChecker) Check(ctx context.Context) Result {
	usage, err := disk.UsageWithContext(ctx, d.path)
	if err != nil {
		return Unhealthy("disk stats unavailable", err)
	}

	details := map[string]any{
		"path":         d.path,
		"total_bytes":  usage.Total,
		"free_bytes":   usage.Free,
		"used_percent": usage.UsedPercent,
	}

	usedRatio := usage.UsedPercent / 100

	if usedRatio >= d.criticalThreshold {
		return Unhealthy(
			fmt.Sprintf("disk usage critical: %.1f%%", usage.UsedPercent),
			nil,
		).WithDetails(details)
	}
	if usedRatio >= d.warningThreshold {
		return Degraded(
			fmt.Sprintf("disk usage high: %.1f%%", usage.UsedPercent),
		).WithDetails(details)
	}
	return Healthy(
		fmt.Sprintf("disk usage normal: %.1f%%", usage.UsedPercent),
	).WithDetails(details)
}
