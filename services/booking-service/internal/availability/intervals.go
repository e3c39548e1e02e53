package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// Interval is a half-open [Start, End) range of instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// MinuteInterval is a half-open [Start, End) range of minutes from local midnight.
type MinuteInterval struct {
	Start int
	End   int
}

// OpenIntervals derives a staff member's free capacity for one weekday: the union of
// its work blocks minus every break and unavailable block. Blocks belonging to
// another tenant, staff member or weekday are ignored. The result is ordered and
// non-overlapping; it is empty when there is no work block for the weekday.
func OpenIntervals(blocks []model.TimeBlock, tenantID, staffID string, weekday time.Weekday) []MinuteInterval {
	var work, cuts []MinuteInterval
	for _, b := range blocks {
		if b.TenantID != tenantID || b.StaffID != staffID || b.Weekday != int(weekday) {
			continue
		}
		if b.Validate() != nil {
			continue
		}
		iv := MinuteInterval{Start: b.StartMinute, End: b.EndMinute}
		if b.Type == model.BlockWork {
			work = append(work, iv)
		} else {
			cuts = append(cuts, iv)
		}
	}
	if len(work) == 0 {
		return nil
	}

	var out []MinuteInterval
	for _, w := range mergeMinutes(work) {
		out = append(out, subtractMinutes(w, cuts)...)
	}
	return out
}

func mergeMinutes(in []MinuteInterval) []MinuteInterval {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]MinuteInterval(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := make([]MinuteInterval, 0, len(sorted))
	for _, cur := range sorted {
		if len(merged) == 0 || cur.Start > merged[len(merged)-1].End {
			merged = append(merged, cur)
			continue
		}
		if last := &merged[len(merged)-1]; cur.End > last.End {
			last.End = cur.End
		}
	}
	return merged
}

func subtractMinutes(base MinuteInterval, cuts []MinuteInterval) []MinuteInterval {
	var clipped []MinuteInterval
	for _, c := range cuts {
		s, e := max(c.Start, base.Start), min(c.End, base.End)
		if e > s {
			clipped = append(clipped, MinuteInterval{Start: s, End: e})
		}
	}

	var out []MinuteInterval
	cursor := base.Start
	for _, m := range mergeMinutes(clipped) {
		if m.Start > cursor {
			out = append(out, MinuteInterval{Start: cursor, End: m.Start})
		}
		if m.End > cursor {
			cursor = m.End
		}
	}
	if base.End > cursor {
		out = append(out, MinuteInterval{Start: cursor, End: base.End})
	}
	return out
}

// WindowsForDay anchors minute intervals to the calendar day of day in loc.
// Wall-clock minutes are used, so DST transitions shift the absolute instant.
func WindowsForDay(mins []MinuteInterval, day time.Time, loc *time.Location) []Interval {
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	out := make([]Interval, 0, len(mins))
	for _, m := range mins {
		out = append(out, Interval{
			Start: time.Date(d.Year(), d.Month(), d.Day(), 0, m.Start, 0, 0, loc),
			End:   time.Date(d.Year(), d.Month(), d.Day(), 0, m.End, 0, 0, loc),
		})
	}
	return out
}

// Fits reports whether [start, end) lies entirely inside one of windows.
func Fits(windows []Interval, start, end time.Time) bool {
	for _, w := range windows {
		if !start.Before(w.Start) && !end.After(w.End) {
			return true
		}
	}
	return false
}

// Subtract removes busy ranges from windows, returning the free remainder in order.
func Subtract(windows, busy []Interval) []Interval {
	busy = append([]Interval(nil), busy...)
	sortIntervals(busy)
	var out []Interval
	for _, w := range windows {
		cursor := w.Start
		for _, b := range busy {
			if !b.End.After(cursor) || !b.Start.Before(w.End) {
				continue
			}
			if b.Start.After(cursor) {
				out = append(out, Interval{Start: cursor, End: b.Start})
			}
			if b.End.After(cursor) {
				cursor = b.End
			}
		}
		if w.End.After(cursor) {
			out = append(out, Interval{Start: cursor, End: w.End})
		}
	}
	return out
}

func sortIntervals(in []Interval) {
	sort.Slice(in, func(i, j int) bool { return in[i].Start.Before(in[j].Start) })
}
