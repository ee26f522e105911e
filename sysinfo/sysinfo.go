package sysinfo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/localops/cache"
)

// Snapshot is a point-in-time view of the host.
type Snapshot struct {
	Hostname      string    `json:"hostname"`
	OS            string    `json:"os"`
	Platform      string    `json:"platform"`
	KernelVersion string    `json:"kernel_version"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	CPUModel      string    `json:"cpu_model"`
	CPUCores      int       `json:"cpu_cores"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemTotal      uint64    `json:"mem_total"`
	MemAvailable  uint64    `json:"mem_available"`
	MemUsedPct    float64   `json:"mem_used_percent"`
	DiskTotal     uint64    `json:"disk_total"`
	DiskFree      uint64    `json:"disk_free"`
	DiskUsedPct   float64   `json:"disk_used_percent"`
	GoVersion     string    `json:"go_version"`
	Goroutines    int       `json:"goroutines"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Service collects host information. Queries are deduplicated with
// singleflight and cached because they are comparatively expensive.
type Service struct {
	diskPath string
	store    *cache.Store[Snapshot]
	keyer    cache.Keyer
	group    singleflight.Group
}

// New creates a system info service. diskPath selects the filesystem
// reported in disk stats, typically the workspace root. The cache store
// may be nil to disable caching.
func New(diskPath string, store *cache.Store[Snapshot]) *Service {
	if diskPath == "" {
		diskPath = "/"
	}
	return &Service{
		diskPath: diskPath,
		store:    store,
		keyer:    cache.NewDefaultKeyer(),
	}
}

// Snapshot returns host information, served from cache when live.
// Concurrent callers share a single collection.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	key, keyErr := s.keyer.Key("system_info", map[string]any{"disk": s.diskPath})
	if keyErr == nil && s.store != nil {
		if snap, ok := s.store.Get(key); ok {
			return snap, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		snap, err := s.collect(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		if keyErr == nil && s.store != nil {
			s.store.Set(key, snap)
		}
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (s *Service) collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		GoVersion:   runtime.Version(),
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now().UTC(),
	}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("host info: %w", err)
	}
	snap.Hostname = info.Hostname
	snap.OS = info.OS
	snap.Platform = info.Platform
	snap.KernelVersion = info.KernelVersion
	snap.UptimeSeconds = info.Uptime

	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		snap.CPUModel = infos[0].ModelName
	}
	snap.CPUCores = runtime.NumCPU()
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		snap.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("memory info: %w", err)
	}
	snap.MemTotal = vm.Total
	snap.MemAvailable = vm.Available
	snap.MemUsedPct = vm.UsedPercent

	if usage, err := disk.UsageWithContext(ctx, s.diskPath); err == nil {
		snap.DiskTotal = usage.Total
		snap.DiskFree = usage.Free
		snap.DiskUsedPct = usage.UsedPercent
	}

	return snap, nil
}
