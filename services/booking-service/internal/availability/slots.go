package availability

import "time"

// AvailableSlots lists the starts, stepping from window.Start, at which an
// appointment of length d fits inside window without touching busy. Starts
// before notBefore are skipped.
func AvailableSlots(window Interval, d, step time.Duration, busy []Interval, notBefore time.Time) []time.Time {
	if d <= 0 || step <= 0 || !window.End.After(window.Start) {
		return nil
	}
	var out []time.Time
	for _, free := range Subtract([]Interval{window}, busy) {
		// first grid point at or after free.Start
		offset := free.Start.Sub(window.Start)
		t := window.Start.Add((offset + step - 1) / step * step)
		for ; !t.Add(d).After(free.End); t = t.Add(step) {
			if t.Before(notBefore) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}
