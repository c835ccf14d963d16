// v1
// internal/aggregate/ranker.go
package aggregate

import (
	"context"
	"fmt"
	"sort"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/store"
)

// TopConsumers ranks the supplied devices by average power inside the window.
// Each device is summarized independently; devices without readings are left
// out rather than ranked with an undefined average. The result is ordered by
// average descending, then device id ascending so equal averages stay
// deterministic, and is truncated to limit entries.
func TopConsumers(ctx context.Context, s store.ReadingStore, devices []core.Device, w core.Window, limit int) ([]core.RankedDevice, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", core.ErrInvalidArgument)
	}

	ranked := make([]core.RankedDevice, 0, len(devices))
	for _, d := range devices {
		sum, err := Summarize(ctx, s, []string{d.ID}, w)
		if err != nil {
			return nil, err
		}
		avg, ok := sum.Average()
		if !ok {
			continue
		}
		ranked = append(ranked, core.RankedDevice{
			DeviceID:          d.ID,
			Name:              d.Name,
			Type:              d.Type,
			AveragePowerWatts: avg,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].AveragePowerWatts != ranked[j].AveragePowerWatts {
			return ranked[i].AveragePowerWatts > ranked[j].AveragePowerWatts
		}
		return ranked[i].DeviceID < ranked[j].DeviceID
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
