package monitor

import (
	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// Sample is one instantaneous CPU/memory reading for a pid.
type Sample struct {
	CPUPercent float64
	RSSBytes   uint64
}

// Sample reads the OS-reported instantaneous CPU percent (since the process
// last had this method called on it) and resident memory for pid. It returns
// the zero Sample and an error if the process can no longer be inspected.
// The Monitor skips the entry for that tick on error and does not mark it
// Errored; crash detection is left to the Supervisor loop.
func SampleProcess(pid int) (Sample, error) {
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return Sample{}, err
	}
	cpuPct, err := p.CPUPercent()
	if err != nil {
		return Sample{}, err
	}
	mem, err := p.MemoryInfo()
	if err != nil {
		return Sample{}, err
	}
	return Sample{CPUPercent: cpuPct, RSSBytes: mem.RSS}, nil
}
