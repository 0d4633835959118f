package obs

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostDiagnostics is the subset of host resource metrics the `health-check`
// CLI command reports. Adapted from cmd/agent/main.go's collectMetrics,
// dropping its per-process (gopsutil/v3/process) and per-connection
// (gopsutil/v3/net) collection — this CLI command never targets a specific
// worker process, only the host it runs on.
type HostDiagnostics struct {
	CPUPercent   float64
	MemTotal     uint64
	MemUsed      uint64
	MemAvailable uint64
	LoadAvg1     float64
	LoadAvg5     float64
	LoadAvg15    float64
}

// CollectHostDiagnostics samples CPU, memory and load averages. A CPU
// sampling failure is returned as an error. The memory and load
// sub-collections are best-effort: a failure there (e.g. load averages
// unsupported on the host OS) leaves the corresponding fields at zero.
func CollectHostDiagnostics() (HostDiagnostics, error) {
	var diag HostDiagnostics

	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		return diag, fmt.Errorf("obs: reading cpu percent: %w", err)
	}
	if len(cpuPercent) > 0 {
		diag.CPUPercent = cpuPercent[0]
	}

	if memInfo, err := mem.VirtualMemory(); err == nil && memInfo != nil {
		diag.MemTotal = memInfo.Total
		diag.MemUsed = memInfo.Used
		diag.MemAvailable = memInfo.Available
	}

	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		diag.LoadAvg1 = loadAvg.Load1
		diag.LoadAvg5 = loadAvg.Load5
		diag.LoadAvg15 = loadAvg.Load15
	}

	return diag, nil
}
