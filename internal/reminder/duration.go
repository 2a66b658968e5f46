package reminder

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDuration = errors.New("invalid duration")

const (
	Day   = 24 * time.Hour
	Week  = 7 * Day
	Month = 30 * Day
	Year  = 365 * Day
)

var units = map[string]time.Duration{
	"y": Year, "yr": Year, "yrs": Year, "year": Year, "years": Year,
	"mo": Month, "mon": Month, "month": Month, "months": Month,
	"w": Week, "wk": Week, "wks": Week, "week": Week, "weeks": Week,
	"d": Day, "day": Day, "days": Day,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
}

// token is anchored so the input is consumed left to right with nothing skipped.
var tokenRe = regexp.MustCompile(`^(\d+)\s*([a-z]*)\s*`)

// ParseDuration sums "<number><unit>" tokens such as "2d 6h 30m" or "1h30m".
// A bare number means minutes. Anything that is not a known token fails.
func ParseDuration(s string) (time.Duration, error) {
	rest := strings.ToLower(strings.TrimSpace(s))
	rest = strings.NewReplacer(",", " ", " and ", " ").Replace(rest)
	if rest == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}
	if n, err := strconv.Atoi(rest); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
		}
		return time.Duration(n) * time.Minute, nil
	}

	var total time.Duration
	for rest != "" {
		m := tokenRe.FindStringSubmatch(rest)
		if m == nil {
			return 0, fmt.Errorf("%w: unexpected %q", ErrInvalidDuration, rest)
		}
		d, ok := units[m[2]]
		if !ok {
			return 0, fmt.Errorf("%w: unknown unit %q", ErrInvalidDuration, m[2])
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidDuration, err)
		}
		total += time.Duration(n) * d
		rest = rest[len(m[0]):]
	}
	if total <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	return total, nil
}

// Format renders d with the largest units first, for example "2d 6h 30m".
func Format(d time.Duration) string {
	if d < time.Second {
		return "0s"
	}
	var parts []string
	for _, u := range []struct {
		d    time.Duration
		name string
	}{{Year, "y"}, {Month, "mo"}, {Week, "w"}, {Day, "d"}, {time.Hour, "h"}, {time.Minute, "m"}, {time.Second, "s"}} {
		if d >= u.d {
			parts = append(parts, fmt.Sprintf("%d%s", d/u.d, u.name))
			d %= u.d
		}
	}
	return strings.Join(parts, " ")
}
