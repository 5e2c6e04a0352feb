package plan

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Locale selects the language used for weekday names and generated text.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleVI Locale = "vi"
)

var weekdayNames = map[Locale][7]string{
	LocaleEN: {"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	LocaleVI: {"Thứ Hai", "Thứ Ba", "Thứ Tư", "Thứ Năm", "Thứ Sáu", "Thứ Bảy", "Chủ Nhật"},
}

var languageNames = map[Locale]string{
	LocaleEN: "English",
	LocaleVI: "Vietnamese",
}

// ParseLocale maps a config value to a Locale.
func ParseLocale(s string) (Locale, error) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := weekdayNames[l]; !ok {
		return "", fmt.Errorf("unsupported locale %q", s)
	}
	return l, nil
}

// Language is the human name of the locale's language, e.g. "English".
func (l Locale) Language() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return languageNames[LocaleEN]
}

// WeekdayName returns the localized name for a Monday-first index 0..6.
func (l Locale) WeekdayName(idx int) string {
	names, ok := weekdayNames[l]
	if !ok {
		names = weekdayNames[LocaleEN]
	}
	return names[((idx%7)+7)%7]
}

// MondayIndex returns the Monday-first weekday index of t: Monday is 0,
// Sunday is 6.
func MondayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Sunday is the Monday-first index of Sunday.
const Sunday = 6

// DayAt returns the calendar date i days after start.
func DayAt(start time.Time, i int) time.Time {
	return start.AddDate(0, 0, i)
}

// Calendar stamps daily plan entries with dates counted from a start day.
type Calendar struct {
	Start  time.Time
	Locale Locale
}

// Stamp sets Date and DayOfWeek on every entry by index, discarding any
// existing values.
func (c Calendar) Stamp(days []Day) {
	for i := range days {
		d := DayAt(c.Start, i)
		days[i].Date = d.Format(DateLayout)
		days[i].DayOfWeek = c.Locale.WeekdayName(MondayIndex(d))
	}
}

// FormatHours renders an hour amount with at most two decimals, e.g. 1,
// 0.67, 1.5.
func FormatHours(h float64) string {
	r := math.Round(h*100) / 100
	return strconv.FormatFloat(r, 'f', -1, 64)
}
