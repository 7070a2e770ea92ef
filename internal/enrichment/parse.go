package enrichment

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	minutesRuntime = regexp.MustCompile(`^(\d+)\s*min$`)
	hoursRuntime   = regexp.MustCompile(`^(\d+)\s*h\s*(\d+)?$`)
	leadingYear    = regexp.MustCompile(`^(\d{4})`)
)

// ParseRuntime converts OMDb runtimes such as "123 min" or "1 h 43" to seconds.
// Unrecognised formats report false.
func ParseRuntime(runtime string) (int, bool) {
	runtime = strings.TrimSpace(runtime)

	if m := minutesRuntime.FindStringSubmatch(runtime); m != nil {
		minutes, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return minutes * 60, true
	}

	if m := hoursRuntime.FindStringSubmatch(runtime); m != nil {
		hours, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		minutes := 0
		if m[2] != "" {
			if minutes, err = strconv.Atoi(m[2]); err != nil {
				return 0, false
			}
		}
		return hours*3600 + minutes*60, true
	}

	return 0, false
}

// ParseYear extracts the leading four digit year, so "2008–2013" yields 2008.
func ParseYear(year string) (int, bool) {
	m := leadingYear.FindStringSubmatch(strings.TrimSpace(year))
	if m == nil {
		return 0, false
	}
	y, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return y, true
}

// ParseVotes parses vote counts that use thousands separators.
func ParseVotes(votes string) (int, bool) {
	v, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(votes), ",", ""))
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func parseRating(rating string) (float64, bool) {
	r, err := strconv.ParseFloat(strings.TrimSpace(rating), 64)
	if err != nil || r < 0 {
		return 0, false
	}
	return r, true
}

func parseMetascore(score string) (int, bool) {
	s, err := strconv.Atoi(strings.TrimSpace(score))
	if err != nil || s < 0 {
		return 0, false
	}
	return s, true
}
