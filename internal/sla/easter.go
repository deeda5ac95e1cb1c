package sla

import (
	"sort"
	"time"

	"github.com/spec-kit/sla-service/internal/domain"
)

// EasterDate returns Easter Sunday for the given year using the anonymous
// Gregorian computus (integer arithmetic only).
func EasterDate(year int, loc *time.Location) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
}

// MovableHolidays derives the Easter-dependent holidays for a year.
// Offsets in days relative to Easter Sunday:
// Carnival Sunday -49, Carnival Monday -48, Carnival Tuesday -47,
// Ash Wednesday -46, Good Friday -2, Corpus Christi +60.
func MovableHolidays(year int, loc *time.Location) []domain.Holiday {
	easter := EasterDate(year, loc)
	entries := []struct {
		offset int
		name   string
	}{
		{-49, "Carnival Sunday"},
		{-48, "Carnival Monday"},
		{-47, "Carnival Tuesday"},
		{-46, "Ash Wednesday"},
		{-2, "Good Friday"},
		{0, "Easter Sunday"},
		{60, "Corpus Christi"},
	}
	holidays := make([]domain.Holiday, 0, len(entries))
	for _, entry := range entries {
		holidays = append(holidays, domain.Holiday{
			Date:     easter.AddDate(0, 0, entry.offset),
			Name:     entry.name,
			Movable:  true,
			IsActive: true,
		})
	}
	return holidays
}

// FixedHolidays returns the Brazilian national holidays that fall on the
// same date every year.
func FixedHolidays(year int, loc *time.Location) []domain.Holiday {
	entries := []struct {
		month time.Month
		day   int
		name  string
	}{
		{time.January, 1, "New Year's Day"},
		{time.April, 21, "Tiradentes"},
		{time.May, 1, "Labour Day"},
		{time.September, 7, "Independence Day"},
		{time.October, 12, "Nossa Senhora Aparecida"},
		{time.November, 2, "All Souls' Day"},
		{time.November, 15, "Republic Day"},
		{time.November, 20, "Black Awareness Day"},
		{time.December, 25, "Christmas Day"},
	}
	holidays := make([]domain.Holiday, 0, len(entries))
	for _, entry := range entries {
		holidays = append(holidays, domain.Holiday{
			Date:     time.Date(year, entry.month, entry.day, 0, 0, 0, 0, loc),
			Name:     entry.name,
			IsActive: true,
		})
	}
	return holidays
}

// HolidaysForYear returns the full holiday set (fixed plus movable) for a
// year, ordered by date.
func HolidaysForYear(year int, loc *time.Location) []domain.Holiday {
	holidays := append(FixedHolidays(year, loc), MovableHolidays(year, loc)...)
	sort.Slice(holidays, func(i, j int) bool {
		return holidays[i].Date.Before(holidays[j].Date)
	})
	return holidays
}
