package monitor

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// RuntimeStats is a point-in-time snapshot of process and host resources,
// reported by the health endpoint.
type RuntimeStats struct {
	Timestamp      time.Time `json:"timestamp"`
	CPUCores       int       `json:"cpu_cores"`
	CPUUsagePct    float64   `json:"cpu_usage_pct"`
	MemoryTotalGB  float64   `json:"memory_total_gb"`
	MemoryUsagePct float64   `json:"memory_usage_pct"`
	Goroutines     int       `json:"goroutines"`
	HeapAllocMB    float64   `json:"heap_alloc_mb"`
}

// ResourceMonitor sizes worker pools from host capacity and exposes
// runtime stats. Probe failures degrade to CPU-count heuristics.
type ResourceMonitor struct {
	cpuCores int
	memoryGB float64
	logger   *logrus.Logger
}

func NewResourceMonitor(logger *logrus.Logger) *ResourceMonitor {
	rm := &ResourceMonitor{
		cpuCores: runtime.NumCPU(),
		logger:   logger,
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		rm.memoryGB = float64(memInfo.Total) / (1024 * 1024 * 1024)
	} else {
		rm.logger.WithError(err).Warn("Could not probe system memory, assuming 8GB")
		rm.memoryGB = 8.0
	}

	rm.logger.WithFields(logrus.Fields{
		"cpu_cores": rm.cpuCores,
		"memory_gb": rm.memoryGB,
	}).Info("Resource monitor initialized")

	return rm
}

// OptimalWorkers returns a worker count scaled to CPU cores and clamped
// down on low-memory hosts. Used when the configured worker count is 0.
func (rm *ResourceMonitor) OptimalWorkers() int {
	workers := rm.cpuCores * 2

	memoryFactor := 1.0
	if rm.memoryGB < 4.0 {
		memoryFactor = 0.5
	} else if rm.memoryGB < 8.0 {
		memoryFactor = 0.75
	}

	workers = int(float64(workers) * memoryFactor)
	if workers < 2 {
		workers = 2
	}
	if workers > 32 {
		workers = 32
	}
	return workers
}

// Stats samples CPU, memory, and Go runtime counters. CPU sampling is
// instantaneous (no interval) to keep the health endpoint fast.
func (rm *ResourceMonitor) Stats() RuntimeStats {
	stats := RuntimeStats{
		Timestamp:     time.Now().UTC(),
		CPUCores:      rm.cpuCores,
		MemoryTotalGB: rm.memoryGB,
		Goroutines:    runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUUsagePct = percents[0]
	} else if err != nil {
		rm.logger.WithError(err).Debug("CPU usage probe failed")
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsagePct = memInfo.UsedPercent
	} else {
		rm.logger.WithError(err).Debug("Memory usage probe failed")
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	stats.HeapAllocMB = float64(ms.HeapAlloc) / (1024 * 1024)

	return stats
}
