package util

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const day = 24 * time.Hour

// maxWindowDays is the largest day count a time.Duration can hold.
const maxWindowDays = int(math.MaxInt64 / int64(day))

// ParseWindow parses a trailing window such as "90m", "24h" or "7d".
// The "d" suffix means 24h days; everything else follows time.ParseDuration.
func ParseWindow(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty window")
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid window %q", s)
		}
		if n > maxWindowDays {
			return 0, fmt.Errorf("window %q exceeds %d days", s, maxWindowDays)
		}
		return time.Duration(n) * day, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid window %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("window must be positive, got %s", s)
	}
	return d, nil
}
