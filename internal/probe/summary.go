package probe

import (
	"time"

	"github.com/montanaflynn/stats"
)

// Summary aggregates the round-trip times of the reachable servers.
type Summary struct {
	Probed    int
	Reachable int
	Min       time.Duration
	Median    time.Duration
	Mean      time.Duration
	Max       time.Duration
}

func Summarize(results []Result) Summary {
	sum := Summary{Probed: len(results)}

	var ms stats.Float64Data
	for _, r := range results {
		if r.OK() {
			ms = append(ms, float64(r.RTT)/float64(time.Millisecond))
		}
	}
	sum.Reachable = len(ms)
	if len(ms) == 0 {
		return sum
	}

	lo, _ := ms.Min()
	median, _ := ms.Median()
	mean, _ := ms.Mean()
	hi, _ := ms.Max()
	sum.Min = millis(lo)
	sum.Median = millis(median)
	sum.Mean = millis(mean)
	sum.Max = millis(hi)
	return sum
}

func millis(v float64) time.Duration {
	return time.Duration(v * float64(time.Millisecond))
}
