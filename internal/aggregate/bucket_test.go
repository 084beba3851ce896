package aggregate

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	in := time.Date(2025, 3, 10, 1, 30, 45, 99, time.FixedZone("X", 3*3600))
	if got, want := TruncateHour(in), time.Date(2025, 3, 9, 22, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("TruncateHour = %v, want %v", got, want)
	}
	if got, want := TruncateDay(in), time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("TruncateDay = %v, want %v", got, want)
	}
}

func TestDaySeries_ZeroFillAndPartialLastDay(t *testing.T) {
	start := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	hours := HourStat{
		time.Date(2025, 3, 4, 2, 0, 0, 0, time.UTC):  5,
		time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC): 7,
	}

	days := DaySeries(hours, start, end)
	if len(days) != 7 {
		t.Fatalf("len(days) = %d, want 7", len(days))
	}
	for i, d := range days[:6] {
		if len(d.Values) != 24 || d.FirstHour != 0 {
			t.Errorf("day %d: %d values from hour %d, want 24 from 0", i, len(d.Values), d.FirstHour)
		}
	}
	last := days[6]
	if len(last.Values) != 14 {
		t.Errorf("last day has %d values, want 14", len(last.Values))
	}
	if days[0].Values[2] != 5 || days[0].Values[3] != 0 {
		t.Errorf("first day values = %v", days[0].Values)
	}
	if last.Latest() != 7 {
		t.Errorf("last.Latest() = %d, want 7", last.Latest())
	}
	if got := TotalHours(days); got != 6*24+14 {
		t.Errorf("TotalHours = %d, want %d", got, 6*24+14)
	}
}

func TestDaySeries_PartialFirstDay(t *testing.T) {
	start := time.Date(2025, 3, 4, 20, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 5, 2, 30, 0, 0, time.UTC)

	days := DaySeries(HourStat{}, start, end)
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[0].FirstHour != 20 || len(days[0].Values) != 4 {
		t.Errorf("first day = hour %d, %d values; want 20, 4", days[0].FirstHour, len(days[0].Values))
	}
	if len(days[1].Values) != 3 {
		t.Errorf("second day has %d values, want 3", len(days[1].Values))
	}
}

func TestDaySeries_EndBeforeStart(t *testing.T) {
	now := time.Now()
	if days := DaySeries(nil, now, now.Add(-2*time.Hour)); days != nil {
		t.Errorf("DaySeries with end < start = %v, want nil", days)
	}
}
