package votes

import "math"

const (
	dotWidth = 8
	dotGap   = 8
	minDots  = 10
)

// DotCount is how many dots fit into a card of the given pixel width.
func DotCount(widthPx int) int {
	n := int(math.Round(float64(widthPx+dotGap) / float64(dotWidth+dotGap)))
	return max(minDots, n)
}

// Dots splits total dots into government and opposition shares for a
// government yes percentage. Out of range percentages are clamped.
func Dots(governmentPct float64, total int) (government, opposition int) {
	if total <= 0 || math.IsNaN(governmentPct) {
		return 0, max(total, 0)
	}
	pct := math.Min(math.Max(governmentPct, 0), 100)
	government = int(math.Round(pct / 100 * float64(total)))
	return government, total - government
}

// DotSplit is the dot row of the government support bar.
type DotSplit struct {
	Total      int `json:"total"`
	Government int `json:"government"`
	Opposition int `json:"opposition"`
}

// SplitDots sizes the dot row for a card of widthPx and splits it by the
// government yes percentage.
func SplitDots(governmentPct float64, widthPx int) DotSplit {
	total := DotCount(widthPx)
	gov, opp := Dots(governmentPct, total)
	return DotSplit{Total: total, Government: gov, Opposition: opp}
}
