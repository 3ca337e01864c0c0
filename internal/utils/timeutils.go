package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// AlertFilterLayout is the timestamp layout accepted by the alerts filter language.
	AlertFilterLayout = "2006/01/02 03:04:05 PM"
	// IncidentFilterLayout is the timestamp layout accepted by incident date filters.
	IncidentFilterLayout = "2006-01-02 15:04:05"
	// MonthLayout labels a calendar month.
	MonthLayout = "January 2006"
)

// LoadLocation resolves an IANA zone name or a fixed offset. A fixed offset may
// carry its display abbreviation ("IST+05:30"); a bare "+05:30" displays as
// "UTC+05:30".
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	if i := strings.IndexAny(name, "+-"); i >= 0 && isAbbreviation(name[:i]) {
		offset, err := parseOffset(name[i:])
		if err != nil {
			return nil, err
		}
		abbr := name[:i]
		if abbr == "" {
			abbr = "UTC" + name
		}
		return time.FixedZone(abbr, offset), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

func isAbbreviation(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func parseOffset(value string) (int, error) {
	sign := 1
	if value[0] == '-' {
		sign = -1
	}
	hh, mm, found := strings.Cut(value[1:], ":")
	if !found {
		mm = "0"
	}
	hours, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", value, err)
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", value, err)
	}
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("offset %q out of range", value)
	}
	return sign * (hours*3600 + minutes*60), nil
}

// MonthStart returns midnight on the first day of now's month in loc.
func MonthStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
}
