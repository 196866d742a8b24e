package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseCronField expands one cron field ("*", "1,2,3", "1-5", "*/15",
// "1-10/2") into the set of calendar values it matches.
//
// A faithful Go port of original_source/plug/cron/scheduler.py's
// _parse_cron_field — the exact algorithm spec §4.6 is distilled from.
// github.com/adhocore/gronx was deliberately not used here; see DESIGN.md.
func parseCronField(raw string, min, max int) (map[int]struct{}, error) {
	values := make(map[int]struct{})
	for _, part := range strings.Split(raw, ",") {
		switch {
		case strings.Contains(part, "/"):
			pieces := strings.SplitN(part, "/", 2)
			step, err := strconv.Atoi(pieces[1])
			if err != nil || step <= 0 {
				return nil, fmt.Errorf("scheduler: invalid step in field %q", raw)
			}
			start := min
			if pieces[0] != "*" {
				start, err = strconv.Atoi(pieces[0])
				if err != nil {
					return nil, fmt.Errorf("scheduler: invalid range base in field %q", raw)
				}
			}
			for v := start; v <= max; v += step {
				values[v] = struct{}{}
			}
		case strings.Contains(part, "-"):
			bounds := strings.SplitN(part, "-", 2)
			lo, err1 := strconv.Atoi(bounds[0])
			hi, err2 := strconv.Atoi(bounds[1])
			if err1 != nil || err2 != nil || lo > hi {
				return nil, fmt.Errorf("scheduler: invalid range in field %q", raw)
			}
			for v := lo; v <= hi; v++ {
				values[v] = struct{}{}
			}
		case part == "*":
			for v := min; v <= max; v++ {
				values[v] = struct{}{}
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("scheduler: invalid value in field %q", raw)
			}
			values[v] = struct{}{}
		}
	}
	return values, nil
}

// weekdayMonday0 converts Go's time.Weekday (Sunday=0) to the cron
// convention spec §4.6 requires: Monday=0..Sunday=6.
func weekdayMonday0(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// cronMatches reports whether dt (in UTC, minute resolution) matches the
// five-field cron expression expr.
func cronMatches(expr string, dt time.Time) (bool, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return false, fmt.Errorf("scheduler: cron expression must have 5 fields, got %d: %q", len(fields), expr)
	}

	minute, err := parseCronField(fields[0], 0, 59)
	if err != nil {
		return false, err
	}
	hour, err := parseCronField(fields[1], 0, 23)
	if err != nil {
		return false, err
	}
	dom, err := parseCronField(fields[2], 1, 31)
	if err != nil {
		return false, err
	}
	month, err := parseCronField(fields[3], 1, 12)
	if err != nil {
		return false, err
	}
	dow, err := parseCronField(fields[4], 0, 6)
	if err != nil {
		return false, err
	}

	_, inMinute := minute[dt.Minute()]
	_, inHour := hour[dt.Hour()]
	_, inDOM := dom[dt.Day()]
	_, inMonth := month[int(dt.Month())]
	_, inDOW := dow[weekdayMonday0(dt)]

	return inMinute && inHour && inDOM && inMonth && inDOW, nil
}

// maxCronScanDays bounds next_cron_time's forward scan (spec §4.6).
const maxCronScanDays = 366

// nextCronTime finds the first minute-aligned time strictly after `after`
// (UTC) that matches expr, scanning forward up to maxCronScanDays days.
func nextCronTime(expr string, after time.Time) (time.Time, error) {
	dt := after.UTC().Truncate(time.Minute).Add(time.Minute)
	limit := after.UTC().AddDate(0, 0, maxCronScanDays)

	for dt.Before(limit) {
		matched, err := cronMatches(expr, dt)
		if err != nil {
			return time.Time{}, err
		}
		if matched {
			return dt, nil
		}
		dt = dt.Add(time.Minute)
	}
	return time.Time{}, fmt.Errorf("scheduler: no matching time found for cron expression %q within %d days", expr, maxCronScanDays)
}
