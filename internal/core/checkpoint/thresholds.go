package checkpoint

import (
	"fmt"
	"sort"
)

// DefaultThresholds are the progress percentages that trigger automatic checkpoints.
var DefaultThresholds = []int{25, 50, 75}

// CrossedThresholds returns the thresholds at or below progress that have
// not been marked yet, in ascending order.
func CrossedThresholds(progress int, thresholds []int, marked map[int]bool) []int {
	var crossed []int
	for _, th := range thresholds {
		if th <= 0 || th > 100 {
			continue
		}
		if progress >= th && !marked[th] {
			crossed = append(crossed, th)
		}
	}
	sort.Ints(crossed)
	return dedupe(crossed)
}

// ThresholdDetails formats trigger_details for an automatic checkpoint.
func ThresholdDetails(crossed []int) string {
	if len(crossed) == 0 {
		return ""
	}
	return fmt.Sprintf("threshold:%d", crossed[len(crossed)-1])
}

func dedupe(sorted []int) []int {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, v := range sorted[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
