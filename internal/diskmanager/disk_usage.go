// Package diskmanager implements the retention purge task (spec §7): a
// daily age-based cleanup of LocalStore rows, grounded on the original's
// per-table MySQL event (`CREATE EVENT ... DELETE FROM ... WHERE
// TIMESTAMP < NOW() - INTERVAL R DAY`), reimplemented as a Go ticker task
// since scheduled SQL events are not portable to the SQLite backend.
// Disk free-space checks reuse gopsutil rather than hand-rolled
// syscall.Statfs, the way the rest of the pack reaches for gopsutil for
// platform-independent host stats.
package diskmanager

import (
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/robudan/acoustic-logger/internal/errors"
)

// DiskSpaceInfo holds detailed disk space information.
type DiskSpaceInfo struct {
	TotalBytes uint64
	UsedBytes  uint64
}

// GetDiskUsage returns the disk usage percentage for the filesystem
// containing path.
func GetDiskUsage(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, errors.New(err).
			Component("diskmanager").
			Category(errors.CategoryDiskUsage).
			Context("path", path).
			Build()
	}
	return usage.UsedPercent, nil
}

// GetAvailableSpace returns the available disk space in bytes at path.
func GetAvailableSpace(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, errors.New(err).
			Component("diskmanager").
			Category(errors.CategoryDiskUsage).
			Context("path", path).
			Build()
	}
	return usage.Free, nil
}

// GetDetailedDiskUsage returns total/used bytes for the filesystem
// containing path.
func GetDetailedDiskUsage(path string) (DiskSpaceInfo, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return DiskSpaceInfo{}, errors.New(err).
			Component("diskmanager").
			Category(errors.CategoryDiskUsage).
			Context("path", path).
			Build()
	}
	return DiskSpaceInfo{TotalBytes: usage.Total, UsedBytes: usage.Used}, nil
}

// diskCheckInterval is an hourly cadence for free-space checks. Nothing in
// this package schedules such a check, and the retention Manager purges
// without consulting disk usage.
const diskCheckInterval = time.Hour
