package health

import (
	"math"
	"time"
)

// SecondsToRecover extrapolates how long the node needs to catch up, from
// the bounded delta history (newest sample first). It is a linear-trend
// estimate, not a guarantee.
//
// Returns nil until the history holds at least minSamples entries. Returns
// 0 when the delta is stuck, -1 when the delta is growing and the node
// never recovers at the current trend.
func SecondsToRecover(history []int64, interval time.Duration, minSamples int) *int64 {
	if minSamples < 2 {
		minSamples = 2
	}
	if len(history) < minSamples {
		return nil
	}

	newest := history[0]
	oldest := history[len(history)-1]
	if newest == oldest {
		return ptr(0)
	}

	// Mean per-interval reduction across the window. Consecutive
	// differences telescope, so this is (oldest-newest)/(steps).
	var total float64
	for i := 0; i < len(history)-1; i++ {
		total += float64(history[i+1] - history[i])
	}
	avg := total / float64(len(history)-1)

	if avg < 0 {
		return ptr(-1)
	}
	if avg == 0 {
		return ptr(0)
	}

	seconds := math.Ceil(float64(newest) / avg * interval.Seconds())
	return ptr(int64(seconds))
}

func ptr(v int64) *int64 { return &v }
