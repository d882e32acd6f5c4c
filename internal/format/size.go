// Package format renders values for API payloads.
package format

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FileSize renders a byte count with 1024-based units, rounded to two decimals
// with trailing zeros dropped: 1536 becomes "1.5 KB".
func FileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	const k = 1024

	// Integer floor(log_k(bytes)) avoids float drift at exact powers of k.
	tier, div := 0, int64(1)
	for tier < len(sizeUnits)-1 && bytes/div >= k {
		tier++
		div *= k
	}

	value := float64(bytes) / float64(div)
	value = math.Round(value*100) / 100

	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[tier]
}
