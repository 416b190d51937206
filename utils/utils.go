package utils

import (
	// Go Internal Packages
	"fmt"
	"time"

	// Local Packages
	models "tx-pipeline/models"
)

// ParseDay parses a YYYY-MM-DD day and returns its UTC midnight.
func ParseDay(day string) (time.Time, error) {
	t, err := time.ParseInLocation(models.DayLayout, day, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q, expected YYYY-MM-DD", day)
	}
	return t, nil
}

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(models.DayLayout)
}

// Chunks splits [0, n) into at most parts contiguous half-open ranges of
// near equal size. It never returns empty ranges.
func Chunks(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	size, rem := n/parts, n%parts
	out := make([][2]int, 0, parts)
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < rem {
			end++
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	return out
}
