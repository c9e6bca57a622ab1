package market

import (
	"testing"
	"time"
)

func jst(t *testing.T, cal *Calendar, s string) time.Time {
	t.Helper()
	v, err := time.ParseInLocation("2006-01-02 15:04", s, cal.Location)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestIsOpen(t *testing.T) {
	cal := TokyoCalendar()
	if err := cal.AddHolidays("2026-11-03"); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		at      string
		open    bool
		session string
	}{
		{"2026-10-19 08:59", false, ""},
		{"2026-10-19 09:00", true, "morning"},
		{"2026-10-19 11:29", true, "morning"},
		{"2026-10-19 11:30", false, ""},
		{"2026-10-19 12:00", false, ""},
		{"2026-10-19 12:30", true, "afternoon"},
		{"2026-10-19 15:29", true, "afternoon"},
		{"2026-10-19 15:30", false, ""},
		{"2026-10-18 10:00", false, ""}, // Sunday
		{"2026-10-24 10:00", false, ""}, // Saturday
		{"2026-11-03 10:00", false, ""}, // holiday
	}
	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			at := jst(t, cal, tt.at)
			if got := cal.IsOpen(at); got != tt.open {
				t.Errorf("IsOpen = %v, want %v", got, tt.open)
			}
			s, _ := cal.SessionAt(at)
			if s.Name != tt.session {
				t.Errorf("session = %q, want %q", s.Name, tt.session)
			}
		})
	}
}

func TestIsOpen_ConvertsFromUTC(t *testing.T) {
	cal := TokyoCalendar()
	// 01:00 UTC is 10:00 JST on a Monday
	at := time.Date(2026, 10, 19, 1, 0, 0, 0, time.UTC)
	if !cal.IsOpen(at) {
		t.Error("expected the morning session to be open")
	}
}

func TestBusinessDays(t *testing.T) {
	cal := TokyoCalendar()
	fri := jst(t, cal, "2026-10-16 14:00")
	tests := []struct {
		to   string
		want int
	}{
		{"2026-10-16 15:00", 0},
		{"2026-10-18 10:00", 0}, // weekend
		{"2026-10-19 09:00", 1},
		{"2026-10-22 09:00", 4},
		{"2026-10-23 09:00", 5},
	}
	for _, tt := range tests {
		if got := cal.BusinessDaysBetween(fri, jst(t, cal, tt.to)); got != tt.want {
			t.Errorf("BusinessDaysBetween(Fri, %s) = %d, want %d", tt.to, got, tt.want)
		}
	}

	if got := cal.AddBusinessDays(fri, 1); got.Weekday() != time.Monday {
		t.Errorf("Fri + 1 business day = %v", got.Weekday())
	}
}

func TestParseClock(t *testing.T) {
	c, err := ParseClock("12:30")
	if err != nil {
		t.Fatal(err)
	}
	if c != 12*60+30 || c.String() != "12:30" {
		t.Errorf("clock = %d (%s)", c, c)
	}
	if _, err := ParseClock("25:99"); err == nil {
		t.Error("expected parse error")
	}
	if err := TokyoCalendar().AddHolidays("11/03"); err == nil {
		t.Error("expected holiday parse error")
	}
}
