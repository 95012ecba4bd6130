package resource

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Stats represents system resource statistics
type Stats struct {
	CPUCount          int    `json:"cpu_count"`
	MemoryTotalMB     uint64 `json:"memory_total_mb"`
	MemoryAvailableMB uint64 `json:"memory_available_mb"`
	DiskFreeMB        uint64 `json:"disk_free_mb"`
	DiskTotalMB       uint64 `json:"disk_total_mb"`
	NumGoroutines     int    `json:"num_goroutines"`
}

// Snapshot reads current memory and the disk usage of the volume holding path
func Snapshot(path string) Stats {
	stats := Stats{
		CPUCount:      runtime.NumCPU(),
		NumGoroutines: runtime.NumGoroutine(),
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		stats.MemoryTotalMB = vmStat.Total / 1024 / 1024
		stats.MemoryAvailableMB = vmStat.Available / 1024 / 1024
	} else {
		// Fallback to runtime stats
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)
		stats.MemoryTotalMB = memStats.Sys / 1024 / 1024
	}

	if diskStat, err := disk.Usage(path); err == nil {
		stats.DiskFreeMB = diskStat.Free / 1024 / 1024
		stats.DiskTotalMB = diskStat.Total / 1024 / 1024
	}
	return stats
}

// CheckAvailableMemory checks if there's enough memory for a model
func CheckAvailableMemory(requiredMB uint64) error {
	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("failed to read memory stats: %w", err)
	}
	availableMB := vmStat.Available / 1024 / 1024
	if availableMB < requiredMB {
		return fmt.Errorf("insufficient memory: need %d MB, have %d MB available", requiredMB, availableMB)
	}
	return nil
}

// EstimateModelMemory estimates the RAM a GGUF model needs once loaded.
// Quantized weights plus KV cache and scratch buffers come to roughly 30%
// over the file size.
func EstimateModelMemory(modelSizeBytes int64) uint64 {
	if modelSizeBytes <= 0 {
		return 0
	}
	baseMB := uint64(modelSizeBytes / 1024 / 1024)
	return uint64(float64(baseMB) * 1.3)
}
