package utils

import (
	"strconv"
	"strings"
	"time"
)

// StringToInt converts s to int, returns fallback if s is empty or invalid
func StringToInt(s string, fallback int) int {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fallback
	}
	return i
}

// StringToDuration parses values like "60s" or "2m", returns fallback on error
func StringToDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// SplitAndTrim splits s by sep and drops empty parts
func SplitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
