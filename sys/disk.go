package sys

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// FreeDiskBytes returns the bytes available on the filesystem holding path.
func FreeDiskBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, fmt.Errorf("disk usage for %s: %w", path, err)
	}
	return usage.Free, nil
}
