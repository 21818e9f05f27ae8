package probe

import (
	"context"

	"github.com/shirou/gopsutil/v4/mem"

	"inkmark/internal/config"
)

// WarningLevel grades current memory headroom.
type WarningLevel string

const (
	WarningLow    WarningLevel = "low"
	WarningMedium WarningLevel = "medium"
	WarningHigh   WarningLevel = "high"
)

// Pressure is the advisory memory precheck result.
type Pressure struct {
	CanProceed   bool
	WarningLevel WarningLevel
	AvailableMB  uint64
}

// memorySampler is replaced in tests.
var memorySampler = func(ctx context.Context) (uint64, error) {
	stats, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return stats.Available, nil
}

// CheckMemoryPressure inspects available memory headroom. The check is
// advisory: when the host does not expose usable statistics it fails open
// rather than blocking work.
func CheckMemoryPressure(ctx context.Context, cfg *config.Config) Pressure {
	available, err := memorySampler(ctx)
	if err != nil {
		return Pressure{CanProceed: true, WarningLevel: WarningLow}
	}

	availableMB := available / (1 << 20)
	result := Pressure{AvailableMB: availableMB}
	switch {
	case availableMB < uint64(cfg.Memory.MinAvailableMB):
		result.CanProceed = false
		result.WarningLevel = WarningHigh
	case availableMB < uint64(cfg.Memory.WarnAvailableMB):
		result.CanProceed = true
		result.WarningLevel = WarningMedium
	default:
		result.CanProceed = true
		result.WarningLevel = WarningLow
	}
	return result
}
