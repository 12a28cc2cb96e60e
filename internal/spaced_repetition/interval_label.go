package spaced_repetition

import (
	"fmt"
	"math"
)

// FormatInterval renders an interval in days the way rating buttons show it
func FormatInterval(days int) string {
	switch {
	case days <= 0:
		return "< 1d"
	case days == 1:
		return "1d"
	case days < 30:
		return fmt.Sprintf("%dd", days)
	case days < 365:
		return fmt.Sprintf("%d mo", int(math.Round(float64(days)/30)))
	default:
		return fmt.Sprintf("%d y", int(math.Round(float64(days)/365)))
	}
}
