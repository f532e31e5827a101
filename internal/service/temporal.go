package service

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hindsight-ai/hindsight/internal/domain"
)

// TemporalExtractor parses natural-language time references out of a query.
// Pure and deterministic given a reference now; returns nil for queries with
// no recognised temporal phrase. Ranges use start-of-day / end-of-day
// boundaries in now's location unless the phrase is sub-day.
type TemporalExtractor struct{}

func NewTemporalExtractor() *TemporalExtractor {
	return &TemporalExtractor{}
}

var (
	lastNRE      = regexp.MustCompile(`\blast (\d+) (day|week|month)s?\b`)
	monthYearRE  = regexp.MustCompile(`\b(?:in )?(january|february|march|april|may|june|july|august|september|october|november|december) (\d{4})\b`)
	lastWeekdayRE = regexp.MustCompile(`\blast (monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	coupleRE     = regexp.MustCompile(`\ba couple of (day|week)s? ago\b`)
)

var monthsByName = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

var weekdaysByName = map[string]time.Weekday{
	"monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
	"sunday": time.Sunday,
}

// Extract returns the time range a query refers to, or nil when the query
// carries no temporal phrase.
func (e *TemporalExtractor) Extract(query string, now time.Time) *domain.TimeRange {
	q := strings.ToLower(query)

	startOfDay := func(t time.Time) time.Time {
		y, m, d := t.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	}
	endOfDay := func(t time.Time) time.Time {
		return startOfDay(t).Add(24*time.Hour - time.Nanosecond)
	}
	dayRange := func(t time.Time) *domain.TimeRange {
		from, to := startOfDay(t), endOfDay(t)
		return &domain.TimeRange{From: &from, To: &to}
	}
	span := func(from, to time.Time) *domain.TimeRange {
		return &domain.TimeRange{From: &from, To: &to}
	}
	// Monday-based start of the week containing t.
	startOfWeek := func(t time.Time) time.Time {
		offset := (int(t.Weekday()) + 6) % 7
		return startOfDay(t.AddDate(0, 0, -offset))
	}

	switch {
	case strings.Contains(q, "today"):
		return dayRange(now)
	case strings.Contains(q, "yesterday"):
		return dayRange(now.AddDate(0, 0, -1))
	case strings.Contains(q, "tomorrow"):
		return dayRange(now.AddDate(0, 0, 1))
	case strings.Contains(q, "this morning"):
		from := startOfDay(now)
		return span(from, from.Add(12*time.Hour))
	case strings.Contains(q, "last night"):
		yesterday := now.AddDate(0, 0, -1)
		return span(startOfDay(yesterday).Add(18*time.Hour), endOfDay(yesterday))
	case strings.Contains(q, "last weekend"):
		// The Saturday-Sunday pair preceding the current week.
		sat := startOfWeek(now).AddDate(0, 0, -2)
		return span(sat, endOfDay(sat.AddDate(0, 0, 1)))
	case strings.Contains(q, "last week"):
		from := startOfWeek(now).AddDate(0, 0, -7)
		return span(from, endOfDay(from.AddDate(0, 0, 6)))
	case strings.Contains(q, "this week"):
		from := startOfWeek(now)
		return span(from, endOfDay(from.AddDate(0, 0, 6)))
	case strings.Contains(q, "next week"):
		from := startOfWeek(now).AddDate(0, 0, 7)
		return span(from, endOfDay(from.AddDate(0, 0, 6)))
	case strings.Contains(q, "last month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return span(first, first.AddDate(0, 1, 0).Add(-time.Nanosecond))
	case strings.Contains(q, "next month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, 1, 0)
		return span(first, first.AddDate(0, 1, 0).Add(-time.Nanosecond))
	case strings.Contains(q, "last year"):
		first := time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, now.Location())
		return span(first, first.AddDate(1, 0, 0).Add(-time.Nanosecond))
	case strings.Contains(q, "a few days ago"):
		from := startOfDay(now.AddDate(0, 0, -5))
		return span(from, endOfDay(now.AddDate(0, 0, -2)))
	}

	if m := coupleRE.FindStringSubmatch(q); m != nil {
		switch m[1] {
		case "day":
			return dayRange(now.AddDate(0, 0, -2))
		case "week":
			from := startOfWeek(now).AddDate(0, 0, -14)
			return span(from, endOfDay(from.AddDate(0, 0, 6)))
		}
	}

	if m := lastNRE.FindStringSubmatch(q); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			var from time.Time
			switch m[2] {
			case "day":
				from = startOfDay(now.AddDate(0, 0, -n))
			case "week":
				from = startOfDay(now.AddDate(0, 0, -7*n))
			case "month":
				from = startOfDay(now.AddDate(0, -n, 0))
			}
			return span(from, endOfDay(now))
		}
	}

	if m := lastWeekdayRE.FindStringSubmatch(q); m != nil {
		target := weekdaysByName[m[1]]
		// Most recent strictly-past occurrence of the weekday.
		back := (int(now.Weekday()) - int(target) + 7) % 7
		if back == 0 {
			back = 7
		}
		return dayRange(now.AddDate(0, 0, -back))
	}

	if m := monthYearRE.FindStringSubmatch(q); m != nil {
		year, err := strconv.Atoi(m[2])
		if err == nil {
			first := time.Date(year, monthsByName[m[1]], 1, 0, 0, 0, 0, now.Location())
			return span(first, first.AddDate(0, 1, 0).Add(-time.Nanosecond))
		}
	}

	return nil
}
