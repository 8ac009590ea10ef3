// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package download

import (
	"context"

	"github.com/shirou/gopsutil/v3/process"
)

// StatsFunc reads resource usage of a process.
type StatsFunc func(ctx context.Context, pid int) (rss uint64, cpu float64, err error)

func processStats(ctx context.Context, pid int) (uint64, float64, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid)) // #nosec G115 -- pids fit in int32
	if err != nil {
		return 0, 0, err
	}
	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercentWithContext(ctx)
	if err != nil {
		return mem.RSS, 0, nil
	}
	return mem.RSS, cpu, nil
}
