package sla

import (
	"testing"
	"time"
)

func TestEasterDate(t *testing.T) {
	tests := []struct {
		year  int
		month time.Month
		day   int
	}{
		{1999, time.April, 4},
		{2000, time.April, 23},
		{2024, time.March, 31},
		{2025, time.April, 20},
		{2026, time.April, 5},
		{2038, time.April, 25},
	}

	for _, tt := range tests {
		got := EasterDate(tt.year, time.UTC)
		if got.Month() != tt.month || got.Day() != tt.day {
			t.Errorf("EasterDate(%d) = %s, want %d-%02d-%02d",
				tt.year, got.Format("2006-01-02"), tt.year, tt.month, tt.day)
		}
	}
}

func TestMovableHolidays(t *testing.T) {
	holidays := MovableHolidays(2025, time.UTC)

	byName := make(map[string]time.Time, len(holidays))
	for _, h := range holidays {
		if !h.Movable {
			t.Errorf("%s not flagged movable", h.Name)
		}
		byName[h.Name] = h.Date
	}

	want := map[string]string{
		"Carnival Sunday":  "2025-03-02",
		"Carnival Monday":  "2025-03-03",
		"Carnival Tuesday": "2025-03-04",
		"Ash Wednesday":    "2025-03-05",
		"Good Friday":      "2025-04-18",
		"Easter Sunday":    "2025-04-20",
		"Corpus Christi":   "2025-06-19",
	}
	for name, date := range want {
		got, ok := byName[name]
		if !ok {
			t.Fatalf("missing holiday %q", name)
		}
		if got.Format("2006-01-02") != date {
			t.Errorf("%s = %s, want %s", name, got.Format("2006-01-02"), date)
		}
	}
}

func TestGoodFridayTracksEaster(t *testing.T) {
	for year := 2020; year <= 2040; year++ {
		easter := EasterDate(year, time.UTC)
		var goodFriday time.Time
		for _, h := range MovableHolidays(year, time.UTC) {
			if h.Name == "Good Friday" {
				goodFriday = h.Date
			}
		}
		if !goodFriday.Equal(easter.AddDate(0, 0, -2)) {
			t.Errorf("year %d: Good Friday %s not two days before Easter %s",
				year, goodFriday.Format("2006-01-02"), easter.Format("2006-01-02"))
		}
	}
}

func TestHolidaysForYearSortedAndComplete(t *testing.T) {
	holidays := HolidaysForYear(2025, time.UTC)

	if len(holidays) != 16 {
		t.Fatalf("expected 16 holidays, got %d", len(holidays))
	}
	for i := 1; i < len(holidays); i++ {
		if holidays[i].Date.Before(holidays[i-1].Date) {
			t.Errorf("holidays out of order at index %d: %s after %s",
				i, holidays[i-1].Date.Format("2006-01-02"), holidays[i].Date.Format("2006-01-02"))
		}
	}
}
