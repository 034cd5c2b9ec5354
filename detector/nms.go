package detector

import (
	"math"
	"sort"
)

func IoU(a, b Box) float64 {
	inter := Box{
		X1: math.Max(a.X1, b.X1),
		Y1: math.Max(a.Y1, b.Y1),
		X2: math.Min(a.X2, b.X2),
		Y2: math.Min(a.Y2, b.Y2),
	}.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS greedily keeps the highest-confidence box and drops every remaining box
// overlapping it by more than threshold IoU, regardless of class.
func NMS(boxes []Box, threshold float64) []Box {
	sorted := append([]Box(nil), boxes...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	suppressed := make([]bool, len(sorted))
	var keep []Box
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		keep = append(keep, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && IoU(sorted[i], sorted[j]) > threshold {
				suppressed[j] = true
			}
		}
	}
	return keep
}
