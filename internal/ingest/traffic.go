package ingest

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var trafficPattern = regexp.MustCompile(`(?i)^\s*([0-9.]+)([KMB])?.*$`)

// ParseTraffic converts an approximate traffic label such as "100K+" or "2M+"
// into thousands of searches. Unrecognised input yields 0.
func ParseTraffic(s string) int {
	m := trafficPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}

	switch strings.ToUpper(m[2]) {
	case "M":
		value *= 1000
	case "B":
		value *= 1000000
	}

	if value > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(value)
}
