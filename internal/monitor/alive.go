// Package monitor implements the liveness probe and the periodic CPU/memory
// sampling described in spec section 4.4 (Supervisor Loop and Monitor).
package monitor

import (
	"bufio"
	"errors"
	"os"
	"strconv"
	"strings"
	"syscall"

	gopsproc "github.com/shirou/gopsutil/v4/process"
	sysconf "github.com/tklauser/go-sysconf"
)

// IsAlive is the liveness probe: a cheap kernel-level presence check for pid.
// Signal 0 delivery succeeds if the process exists and is ours to signal;
// EPERM still means the pid is alive, just owned by someone else.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// StartTimeUnix returns the process's start time in unix seconds, which can
// tell a reused pid from the original child (Invariant 2: stats.pid must
// refer to a process spawned by this supervisor). The Supervisor loop's crash
// detection does not call it. Returns 0 when the start time cannot be
// determined.
func StartTimeUnix(pid int) int64 {
	if pid <= 0 {
		return 0
	}
	if v := startTimeLinux(pid); v > 0 {
		return v
	}
	p, err := gopsproc.NewProcess(int32(pid))
	if err != nil {
		return 0
	}
	ms, err := p.CreateTime()
	if err != nil || ms <= 0 {
		return 0
	}
	return ms / 1000
}

// startTimeLinux reads /proc/[pid]/stat for the starttime field (22nd,
// expressed in clock ticks since boot) and converts it to unix seconds using
// /proc/stat's btime. Returns 0 on any platform where /proc is absent, so it
// is always safe to call.
func startTimeLinux(pid int) int64 {
	statPath := "/proc/" + strconv.Itoa(pid) + "/stat"
	b, err := os.ReadFile(statPath)
	if err != nil {
		return 0
	}
	line := string(b)
	end := strings.LastIndex(line, ") ")
	if end == -1 {
		return 0
	}
	parts := strings.Fields(strings.TrimSpace(line[end+2:]))
	if len(parts) < 20 {
		return 0
	}
	startTicks, err := strconv.ParseInt(parts[19], 10, 64)
	if err != nil || startTicks <= 0 {
		return 0
	}

	f, err := os.Open("/proc/stat")
	if err != nil {
		return 0
	}
	defer func() { _ = f.Close() }()
	var btime int64
	s := bufio.NewScanner(f)
	for s.Scan() {
		text := s.Text()
		if strings.HasPrefix(text, "btime ") {
			if bt, err := strconv.ParseInt(strings.TrimSpace(text[len("btime "):]), 10, 64); err == nil {
				btime = bt
				break
			}
		}
	}
	if btime == 0 {
		return 0
	}

	clk, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clk <= 0 {
		clk = 100
	}
	return btime + startTicks/int64(clk)
}
