// v1
// internal/aggregate/summarize.go
package aggregate

import (
	"context"

	"github.com/Endalebob/smart-home-telemetry/internal/core"
	"github.com/Endalebob/smart-home-telemetry/internal/store"
)

// Summarize folds every matching reading into running count/sum/min/max in a
// single pass over the store. No matching readings is a successful empty
// summary, never an error; callers check Count before using the statistics.
func Summarize(ctx context.Context, s store.ReadingStore, deviceIDs []string, w core.Window) (core.Summary, error) {
	var sum core.Summary
	err := s.Scan(ctx, deviceIDs, w, func(r core.Reading) error {
		sum.Observe(r.PowerWatts)
		return nil
	})
	if err != nil {
		return core.Summary{}, err
	}
	return sum, nil
}
