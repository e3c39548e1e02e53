package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

func block(staff string, wd int, typ model.BlockType, start, end int) model.TimeBlock {
	return model.TimeBlock{TenantID: "t1", StaffID: staff, Weekday: wd, Type: typ, StartMinute: start, EndMinute: end}
}

func TestOpenIntervals(t *testing.T) {
	blocks := []model.TimeBlock{
		block("s1", 1, model.BlockWork, 9*60, 13*60),
		block("s1", 1, model.BlockWork, 12*60, 17*60),
		block("s1", 1, model.BlockBreak, 12*60, 12*60+30),
		block("s1", 1, model.BlockUnavailable, 16*60, 18*60),
		block("s1", 2, model.BlockWork, 0, 1440),
		block("s2", 1, model.BlockWork, 0, 1440),
		{TenantID: "t2", StaffID: "s1", Weekday: 1, Type: model.BlockUnavailable, StartMinute: 9 * 60, EndMinute: 10 * 60},
	}

	got := OpenIntervals(blocks, "t1", "s1", time.Monday)
	want := []MinuteInterval{{9 * 60, 12 * 60}, {12*60 + 30, 16 * 60}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestOpenIntervalsNoWorkBlock(t *testing.T) {
	blocks := []model.TimeBlock{block("s1", 3, model.BlockBreak, 600, 700)}
	if got := OpenIntervals(blocks, "t1", "s1", time.Wednesday); len(got) != 0 {
		t.Fatalf("expected no open intervals, got %v", got)
	}
}

func TestOpenIntervalsBreakCoversWork(t *testing.T) {
	blocks := []model.TimeBlock{
		block("s1", 0, model.BlockWork, 600, 660),
		block("s1", 0, model.BlockUnavailable, 500, 700),
	}
	if got := OpenIntervals(blocks, "t1", "s1", time.Sunday); len(got) != 0 {
		t.Fatalf("expected fully carved day, got %v", got)
	}
}

func TestWindowsForDayAndFits(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)
	wins := WindowsForDay([]MinuteInterval{{9 * 60, 17 * 60}, {0, 1440}}, day, loc)

	if want := time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC); !wins[0].Start.Equal(want) {
		t.Fatalf("start %s, want %s", wins[0].Start.UTC(), want)
	}
	if want := time.Date(2024, 6, 3, 22, 0, 0, 0, time.UTC); !wins[1].End.Equal(want) {
		t.Fatalf("end-of-day %s, want %s", wins[1].End.UTC(), want)
	}

	start := time.Date(2024, 6, 3, 14, 15, 0, 0, time.UTC)
	if !Fits(wins[:1], start, start.Add(45*time.Minute)) {
		t.Fatalf("expected interval to fit")
	}
	if Fits(wins[:1], start, start.Add(2*time.Hour)) {
		t.Fatalf("interval past 17:00 local must not fit")
	}
}

func TestSubtract(t *testing.T) {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	at := func(h, m int) time.Time { return day.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }

	windows := []Interval{{at(9, 0), at(12, 0)}, {at(13, 0), at(17, 0)}}
	busy := []Interval{{at(11, 0), at(13, 30)}, {at(9, 0), at(9, 30)}}

	got := Subtract(windows, busy)
	want := []Interval{{at(9, 30), at(11, 0)}, {at(13, 30), at(17, 0)}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Fatalf("interval %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
