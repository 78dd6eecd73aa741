package infrastructure

import (
	"runtime"
	"time"
)

var processStart = time.Now()

// RuntimeStats is a point-in-time snapshot of the Go runtime
type RuntimeStats struct {
	GoVersion    string
	GoRoutines   int
	HeapAlloc    uint64
	TotalAlloc   uint64
	MemorySystem uint64
	GCCount      uint32
	LastGCPause  time.Duration
	CPUCount     int
	Uptime       time.Duration
	Timestamp    time.Time
}

// CollectRuntimeStats reads the current runtime statistics
func CollectRuntimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		GoRoutines:   runtime.NumGoroutine(),
		HeapAlloc:    mem.HeapAlloc,
		TotalAlloc:   mem.TotalAlloc,
		MemorySystem: mem.Sys,
		GCCount:      mem.NumGC,
		LastGCPause:  time.Duration(mem.PauseNs[(mem.NumGC+255)%256]),
		CPUCount:     runtime.NumCPU(),
		Uptime:       time.Since(processStart),
		Timestamp:    time.Now(),
	}
}

// FormatStats returns the snapshot in the shape served by the health endpoint
func (s RuntimeStats) FormatStats() map[string]interface{} {
	return map[string]interface{}{
		"go_version":       s.GoVersion,
		"os":               runtime.GOOS,
		"arch":             runtime.GOARCH,
		"goroutines":       s.GoRoutines,
		"cpu_count":        s.CPUCount,
		"heap_alloc_mb":    s.HeapAlloc / 1024 / 1024,
		"total_alloc_mb":   s.TotalAlloc / 1024 / 1024,
		"memory_system_mb": s.MemorySystem / 1024 / 1024,
		"gc_count":         s.GCCount,
		"last_gc_pause_ms": s.LastGCPause.Milliseconds(),
		"uptime_seconds":   int64(s.Uptime.Seconds()),
	}
}
