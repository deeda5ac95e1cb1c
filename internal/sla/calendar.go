package sla

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-service/internal/domain"
)

// RuleSource supplies the active business-hours rules.
type RuleSource interface {
	ListActive(ctx context.Context) ([]domain.BusinessHoursRule, error)
}

// HolidaySource supplies active holiday dates for a year.
type HolidaySource interface {
	ListActiveDates(ctx context.Context, year int) ([]time.Time, error)
}

// Window is the business window of one calendar date, as concrete instants.
type Window struct {
	Start time.Time
	End   time.Time
}

type dayWindow struct {
	startMin int // minutes from midnight
	endMin   int
}

// Calendar resolves business windows and holiday exclusions. Rules are
// cached until invalidated; holidays are cached per year. Safe for
// concurrent use.
type Calendar struct {
	rules    RuleSource
	holidays HolidaySource
	loc      *time.Location
	logger   *zap.Logger

	mu           sync.RWMutex
	ruleCache    map[time.Weekday]dayWindow
	rulesLoaded  bool
	holidayCache map[int]map[string]struct{}
}

// NewCalendar constructs a calendar over the given sources and location.
func NewCalendar(rules RuleSource, holidays HolidaySource, loc *time.Location, logger *zap.Logger) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{
		rules:        rules,
		holidays:     holidays,
		loc:          loc,
		logger:       logger,
		holidayCache: make(map[int]map[string]struct{}),
	}
}

// Location returns the calendar's business location.
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// BusinessWindowFor returns the business window covering the date of t, or
// ok=false when the date is a holiday or has no active weekday rule.
func (c *Calendar) BusinessWindowFor(ctx context.Context, t time.Time) (Window, bool, error) {
	local := t.In(c.loc)
	year, month, day := local.Date()

	holiday, err := c.isHoliday(ctx, local)
	if err != nil {
		return Window{}, false, err
	}
	if holiday {
		return Window{}, false, nil
	}

	windows, err := c.loadRules(ctx)
	if err != nil {
		return Window{}, false, err
	}
	win, ok := windows[local.Weekday()]
	if !ok {
		return Window{}, false, nil
	}

	midnight := time.Date(year, month, day, 0, 0, 0, 0, c.loc)
	return Window{
		Start: midnight.Add(time.Duration(win.startMin) * time.Minute),
		End:   midnight.Add(time.Duration(win.endMin) * time.Minute),
	}, true, nil
}

// IsBusinessInstant reports whether t falls inside a business window.
// The lower bound is inclusive, the upper bound exclusive.
func (c *Calendar) IsBusinessInstant(ctx context.Context, t time.Time) (bool, error) {
	win, ok, err := c.BusinessWindowFor(ctx, t)
	if err != nil || !ok {
		return false, err
	}
	return !t.Before(win.Start) && t.Before(win.End), nil
}

// InvalidateRules drops the cached business-hours rules.
func (c *Calendar) InvalidateRules() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ruleCache = nil
	c.rulesLoaded = false
}

// InvalidateHolidayYear drops the cached holiday set of one year.
func (c *Calendar) InvalidateHolidayYear(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.holidayCache, year)
}

// InvalidateAll drops every cached slice.
func (c *Calendar) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ruleCache = nil
	c.rulesLoaded = false
	c.holidayCache = make(map[int]map[string]struct{})
}

func (c *Calendar) isHoliday(ctx context.Context, local time.Time) (bool, error) {
	year := local.Year()
	key := local.Format("2006-01-02")

	c.mu.RLock()
	dates, ok := c.holidayCache[year]
	c.mu.RUnlock()
	if ok {
		_, found := dates[key]
		return found, nil
	}

	loaded, err := c.holidays.ListActiveDates(ctx, year)
	if err != nil {
		return false, err
	}
	dates = make(map[string]struct{}, len(loaded))
	for _, d := range loaded {
		// A DATE column carries no location; pgx hands it back as midnight
		// UTC. Key on the stored components rather than converting, which
		// would shift the date in a non-UTC business location.
		dates[d.Format("2006-01-02")] = struct{}{}
	}

	c.mu.Lock()
	c.holidayCache[year] = dates
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("holiday cache loaded", zap.Int("year", year), zap.Int("count", len(dates)))
	}
	_, found := dates[key]
	return found, nil
}

func (c *Calendar) loadRules(ctx context.Context) (map[time.Weekday]dayWindow, error) {
	c.mu.RLock()
	if c.rulesLoaded {
		cached := c.ruleCache
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	rules, err := c.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	windows := make(map[time.Weekday]dayWindow, len(rules))
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		start := rule.StartHour*60 + rule.StartMin
		end := rule.EndHour*60 + rule.EndMin
		if start >= end {
			if c.logger != nil {
				c.logger.Warn("ignoring business-hours rule with start >= end",
					zap.Int("weekday", int(rule.Weekday)))
			}
			continue
		}
		windows[rule.Weekday] = dayWindow{startMin: start, endMin: end}
	}

	// Mon-Fri 08:00-18:00 when nothing is configured.
	if len(windows) == 0 {
		for wd := time.Monday; wd <= time.Friday; wd++ {
			windows[wd] = dayWindow{startMin: 8 * 60, endMin: 18 * 60}
		}
	}

	c.mu.Lock()
	c.ruleCache = windows
	c.rulesLoaded = true
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Debug("business-hours rules loaded", zap.Int("count", len(windows)))
	}
	return windows, nil
}
