package config

import (
	"regexp"
	"strconv"
)

var (
	hoursPattern   = regexp.MustCompile(`(?i)(\d+)\s*(?:hours?|hrs?|h)\b`)
	minutesPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:minutes?|mins?|m)\b`)
)

// ParseHumanDuration converts a human duration string combining an hour
// and/or minute component into total whole seconds: "2 hours" -> 7200,
// "30 minutes" -> 1800, "1 hour 30 minutes" -> 5400.
//
// The parser is deliberately lenient: a missing component contributes zero
// and input with no recognizable token yields zero. It never returns an
// error, so an unparseable ceiling simply behaves as "no limit".
func ParseHumanDuration(s string) int64 {
	var total int64
	if m := hoursPattern.FindStringSubmatch(s); m != nil {
		if h, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			total += h * 3600
		}
	}
	if m := minutesPattern.FindStringSubmatch(s); m != nil {
		if min, err := strconv.ParseInt(m[1], 10, 64); err == nil {
			total += min * 60
		}
	}
	return total
}
