/*
report.go - Revenue windowing shared by every backend

PURPOSE:
  Pure functions that aggregate bills into the summary and daily report
  shapes. Both backend variants and the facade's client-side derivation
  call these same functions, which is what keeps the report output
  bit-for-bit identical no matter where it is computed.

WINDOWING RULES:
  - "today":  the calendar day of the current instant, local timezone
  - "week":   the current ISO week (Monday through Sunday), local timezone
  - "month":  the current calendar month, local timezone
  - daily:    one entry per calendar day in [today-days+1, today], inclusive,
              zero-filled, ordered oldest to newest

SEE ALSO:
  - backend.go: ReportSummary / ReportDaily contract
  - repository.go: Client-side derivation from ListBills
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day wire format for report dates and bill
// range filters.
const DateLayout = "2006-01-02"

// Bucket is a revenue total plus bill count over one window.
type Bucket struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// Summary aggregates revenue over the standard report windows.
type Summary struct {
	Today   Bucket `json:"today"`
	Week    Bucket `json:"week"`
	Month   Bucket `json:"month"`
	AllTime Bucket `json:"allTime"`
}

// DailyPoint is one calendar day of revenue.
type DailyPoint struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// DayOf truncates an instant to its local calendar day.
func DayOf(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfISOWeek returns the Monday 00:00 of the instant's ISO week.
func startOfISOWeek(t time.Time) time.Time {
	day := DayOf(t)
	// Monday=0 ... Sunday=6
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// startOfMonth returns the first day 00:00 of the instant's month.
func startOfMonth(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// Summarize computes the standard report windows over bills relative to now.
func Summarize(bills []Bill, now time.Time) Summary {
	var s Summary
	s.Today.Total = decimal.Zero
	s.Week.Total = decimal.Zero
	s.Month.Total = decimal.Zero
	s.AllTime.Total = decimal.Zero

	today := DayOf(now)
	weekStart := startOfISOWeek(now)
	monthStart := startOfMonth(now)

	for _, b := range bills {
		day := DayOf(b.CreatedAt)

		s.AllTime.Total = s.AllTime.Total.Add(b.Total)
		s.AllTime.Count++

		// Future-dated bills count toward all-time only.
		if day.After(today) {
			continue
		}
		if day.Equal(today) {
			s.Today.Total = s.Today.Total.Add(b.Total)
			s.Today.Count++
		}
		if !day.Before(weekStart) {
			s.Week.Total = s.Week.Total.Add(b.Total)
			s.Week.Count++
		}
		if !day.Before(monthStart) {
			s.Month.Total = s.Month.Total.Add(b.Total)
			s.Month.Count++
		}
	}
	return s
}

// DailyTotals buckets bills into the trailing days window ending today.
// Every day appears exactly once, zero-filled, oldest first.
func DailyTotals(bills []Bill, now time.Time, days int) []DailyPoint {
	if days < 1 {
		days = 1
	}

	today := DayOf(now)
	first := today.AddDate(0, 0, -(days - 1))

	points := make([]DailyPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		date := first.AddDate(0, 0, i).Format(DateLayout)
		points[i] = DailyPoint{Date: date, Total: decimal.Zero}
		index[date] = i
	}

	for _, b := range bills {
		date := DayOf(b.CreatedAt).Format(DateLayout)
		if i, ok := index[date]; ok {
			points[i].Total = points[i].Total.Add(b.Total)
			points[i].Count++
		}
	}
	return points
}
