package availability

import (
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2024, 6, 3, h, m, 0, 0, time.UTC)
}

func clock(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Format("15:04")
	}
	return out
}

func TestAvailableSlots(t *testing.T) {
	window := Interval{Start: at(9, 0), End: at(11, 0)}
	cases := []struct {
		name      string
		d         time.Duration
		busy      []Interval
		notBefore time.Time
		want      []string
	}{
		{name: "empty day", d: 45 * time.Minute, want: []string{"09:00", "09:15", "09:30", "09:45", "10:00", "10:15"}},
		{
			name: "booking in the middle",
			d:    30 * time.Minute,
			busy: []Interval{{Start: at(9, 30), End: at(10, 15)}},
			want: []string{"09:00", "10:15", "10:30"},
		},
		{
			name: "odd booking end rounds up to the grid",
			d:    30 * time.Minute,
			busy: []Interval{{Start: at(9, 0), End: at(10, 5)}},
			want: []string{"10:15", "10:30"},
		},
		{name: "past starts skipped", d: 30 * time.Minute, notBefore: at(10, 1), want: []string{"10:15", "10:30"}},
		{name: "longer than window", d: 3 * time.Hour, want: nil},
		{
			name: "busy outside window ignored",
			d:    time.Hour,
			busy: []Interval{{Start: at(8, 0), End: at(9, 0)}, {Start: at(11, 0), End: at(12, 0)}},
			want: []string{"09:00", "09:15", "09:30", "09:45", "10:00"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := clock(AvailableSlots(window, tc.d, 15*time.Minute, tc.busy, tc.notBefore))
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestAvailableSlotsRejectsBadInput(t *testing.T) {
	window := Interval{Start: at(9, 0), End: at(10, 0)}
	if got := AvailableSlots(window, 0, 15*time.Minute, nil, time.Time{}); got != nil {
		t.Fatalf("zero duration: got %v", got)
	}
	if got := AvailableSlots(window, 15*time.Minute, 0, nil, time.Time{}); got != nil {
		t.Fatalf("zero step: got %v", got)
	}
	if got := AvailableSlots(Interval{Start: at(10, 0), End: at(9, 0)}, 15*time.Minute, 15*time.Minute, nil, time.Time{}); got != nil {
		t.Fatalf("inverted window: got %v", got)
	}
}
