package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// NormalizeTicker canonicalizes a ticker symbol: trimmed, upper-cased.
func NormalizeTicker(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ParseFloatDefault parses string to float64 or returns default.
// Commercial upstreams report numerics as strings ("None" included).
func ParseFloatDefault(s string, def float64) float64 {
	if s == "" || s == "None" || s == "-" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
