package logger

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	errorsCount    int64
	warnsCount     int64
	snapshotsRead  int64
	fillsRead      int64
	matchesWritten int64
	contractsRun   int64
)

func recordWarn() {
	atomic.AddInt64(&warnsCount, 1)
}

func recordError() {
	atomic.AddInt64(&errorsCount, 1)
}

// RecordSnapshotsRead adds to the running count of LOB rows loaded.
func RecordSnapshotsRead(n int) {
	atomic.AddInt64(&snapshotsRead, int64(n))
}

// RecordFillsRead adds to the running count of hedge rows loaded.
func RecordFillsRead(n int) {
	atomic.AddInt64(&fillsRead, int64(n))
}

// RecordMatchesWritten adds to the running count of match records persisted.
func RecordMatchesWritten(n int) {
	atomic.AddInt64(&matchesWritten, int64(n))
}

// RecordContractRun increments the count of contracts processed.
func RecordContractRun() {
	atomic.AddInt64(&contractsRun, 1)
}

// StartReport begins periodic logging of system and run statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(log)
			}
		}
	}()
}

func logReport(log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	fields := Fields{
		"snapshots_read":  atomic.LoadInt64(&snapshotsRead),
		"fills_read":      atomic.LoadInt64(&fillsRead),
		"matches_written": atomic.LoadInt64(&matchesWritten),
		"contracts_run":   atomic.LoadInt64(&contractsRun),
		"warns":           atomic.LoadInt64(&warnsCount),
		"errors":          atomic.LoadInt64(&errorsCount),
	}
	if len(cpuPercent) > 0 {
		fields["cpu_percent"] = cpuPercent[0]
	}
	if memStats != nil {
		fields["mem_used_percent"] = memStats.UsedPercent
	}
	if diskStats != nil {
		fields["disk_used_percent"] = diskStats.UsedPercent
	}

	log.WithComponent("report").WithFields(fields).Info("run report")
}
