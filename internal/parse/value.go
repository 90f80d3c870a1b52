package parse

import (
	"strconv"
	"strings"
)

// parseCell coerces one table cell into a numeric value. Empty cells and
// dashes mean the stat is absent, which is distinct from zero. Percentage
// cells lose their suffix but keep their 0–100 scale.
func parseCell(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if s == "" || s == "-" || s == "--" {
		return 0, false
	}
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRecord splits a won-loss string ("10-3-0", ties optional) into its
// three components.
func parseRecord(text string) (wins, losses, ties int, ok bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, 0, 0, false
	}
	parts := strings.Split(s, "-")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}
	wins, losses = nums[0], nums[1]
	if len(nums) == 3 {
		ties = nums[2]
	}
	return wins, losses, ties, true
}

// parseSeasonYear extracts the year from a season cell, which may carry
// award markers ("2024*+").
func parseSeasonYear(text string) (int, bool) {
	s := strings.TrimSpace(text)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return year, true
}
