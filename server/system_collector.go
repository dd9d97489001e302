package server

import (
	"expvar"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/INLOpen/sbr/internal/metrics"
	"github.com/INLOpen/sbr/utils/clock"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemCollector periodically publishes CPU, memory and disk usage of the
// recording directory via expvar.
type SystemCollector struct {
	cpuUsagePercent *expvar.Float
	memUsagePercent *expvar.Float
	diskUsage       *expvar.Float
	diskFreeBytes   *expvar.Int
	collections     *expvar.Int
	diskPath        string
	interval        time.Duration
	clock           clock.Clock
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
	logger          *slog.Logger
}

// SystemCollectorOptions configures a SystemCollector.
type SystemCollectorOptions struct {
	// DiskPath is the directory whose filesystem is monitored, usually the recording directory.
	DiskPath string
	Interval time.Duration
	// Global publishes the variables in the process-wide expvar registry.
	Global bool
	Clock  clock.Clock
	Logger *slog.Logger
}

// NewSystemCollector creates a new collector.
func NewSystemCollector(opts SystemCollectorOptions) *SystemCollector {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystemClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = 15 * time.Second
	}
	f := metrics.Factory{Global: opts.Global}
	return &SystemCollector{
		cpuUsagePercent: f.Float("system_cpu_usage_percent"),
		memUsagePercent: f.Float("system_mem_usage_percent"),
		diskUsage:       f.Float("system_disk_usage_percent"),
		diskFreeBytes:   f.Int("system_disk_free_bytes"),
		collections:     f.Int("system_collections_total"),
		diskPath:        opts.DiskPath,
		interval:        opts.Interval,
		clock:           opts.Clock,
		stopChan:        make(chan struct{}),
		logger:          opts.Logger.With("component", "SystemCollector"),
	}
}

// Start begins the background collection loop.
func (sc *SystemCollector) Start() {
	sc.logger.Info("Starting system metrics collector", "interval", sc.interval, "path", sc.diskPath)
	ticker := sc.clock.NewTicker(sc.interval)
	sc.wg.Add(1)
	go sc.collectLoop(ticker)
}

// Stop signals the collection loop to terminate and waits for it to finish.
func (sc *SystemCollector) Stop() {
	sc.stopOnce.Do(func() {
		sc.logger.Info("Stopping system metrics collector")
		close(sc.stopChan)
	})
	sc.wg.Wait()
}

// DiskUsagePercent returns the last published disk usage.
func (sc *SystemCollector) DiskUsagePercent() float64 { return sc.diskUsage.Value() }

// DiskFreeBytes returns the last published free space.
func (sc *SystemCollector) DiskFreeBytes() int64 { return sc.diskFreeBytes.Value() }

// Collections returns the number of completed collections.
func (sc *SystemCollector) Collections() int64 { return sc.collections.Value() }

// Collect takes one sample. CPU usage is measured since the previous call.
func (sc *SystemCollector) Collect() {
	if cpuPercentages, err := cpu.Percent(0, false); err == nil && len(cpuPercentages) > 0 {
		sc.cpuUsagePercent.Set(cpuPercentages[0])
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sc.memUsagePercent.Set(vm.UsedPercent)
	}
	if sc.diskPath != "" {
		if du, err := disk.Usage(sc.diskPath); err == nil {
			sc.diskUsage.Set(du.UsedPercent)
			sc.diskFreeBytes.Set(int64(du.Free))
		} else {
			sc.logger.Debug("Disk usage unavailable", "path", sc.diskPath, "error", err)
		}
	}
	sc.collections.Add(1)
}

func (sc *SystemCollector) collectLoop(ticker clock.Ticker) {
	defer sc.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			sc.Collect()
		case <-sc.stopChan:
			return
		}
	}
}
