package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser fixes the Cron schedule variant's grammar to standard
// 5-field cron (spec.md §9 Open Question i).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// NextFire computes the next fire time for a recurring schedule variant
// after `from` (spec.md §3 "Scheduled job" schedule descriptor).
func NextFire(scheduleType, value string, from time.Time) (time.Time, error) {
	switch scheduleType {
	case "interval":
		secs, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || secs <= 0 {
			return time.Time{}, fmt.Errorf("invalid interval seconds %q", value)
		}
		return from.Add(time.Duration(secs) * time.Second), nil

	case "daily":
		hh, mm, err := parseHHMM(value)
		if err != nil {
			return time.Time{}, err
		}
		next := time.Date(from.Year(), from.Month(), from.Day(), hh, mm, 0, 0, from.Location())
		if !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case "weekly":
		parts := strings.SplitN(value, ",", 2)
		if len(parts) != 2 {
			return time.Time{}, fmt.Errorf("weekly schedule value must be 'weekday,HH:MM', got %q", value)
		}
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(parts[0]))]
		if !ok {
			return time.Time{}, fmt.Errorf("unknown weekday %q", parts[0])
		}
		hh, mm, err := parseHHMM(parts[1])
		if err != nil {
			return time.Time{}, err
		}
		next := time.Date(from.Year(), from.Month(), from.Day(), hh, mm, 0, 0, from.Location())
		for next.Weekday() != wd || !next.After(from) {
			next = next.AddDate(0, 0, 1)
		}
		return next, nil

	case "cron":
		sched, err := cronParser.Parse(value)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", value, err)
		}
		return sched.Next(from), nil

	default:
		return time.Time{}, fmt.Errorf("unknown schedule type %q", scheduleType)
	}
}

func parseHHMM(v string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(v), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	hh, err1 := strconv.Atoi(parts[0])
	mm, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("invalid time of day %q", v)
	}
	return hh, mm, nil
}
