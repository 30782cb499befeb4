// Package calendar builds the month grids shown on a plan page. Weeks run
// Monday to Sunday.
package calendar

import (
	"fmt"
	"time"
)

const layout = "2006-01-02"

// Date 是不带时区的日历日期。
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate 构造日期，越界的日会按 time.Date 的规则归一化。
func NewDate(year int, month time.Month, day int) Date {
	return FromTime(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// FromTime 取 t 所在时区的日历日期。
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Parse 解析 YYYY-MM-DD。
func Parse(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// Time 返回该日期 UTC 零点。
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.Time().Format(layout)
}

// IsZero 判断是否为零值。
func (d Date) IsZero() bool {
	return d == Date{}
}

// Weekday 返回星期几。
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays 返回 n 天之后的日期。
func (d Date) AddDays(n int) Date {
	return FromTime(d.Time().AddDate(0, 0, n))
}

// Before 判断 d 是否早于 other。
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// MarshalText 让 Date 以 YYYY-MM-DD 出现在 JSON 与表单中。
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthDates 返回某月的全部日期。
func MonthDates(month time.Month, year int) []Date {
	first := NewDate(year, month, 1)
	dates := make([]Date, 0, 31)
	for d := first; d.Month == first.Month; d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}

// Pad 向前补齐到周一、向后补齐到周日。
func Pad(dates []Date) []Date {
	if len(dates) == 0 {
		return dates
	}
	first, last := dates[0], dates[len(dates)-1]

	lead := (int(first.Weekday()) + 6) % 7
	trail := (7 - int(last.Weekday())) % 7

	padded := make([]Date, 0, lead+len(dates)+trail)
	for i := lead; i > 0; i-- {
		padded = append(padded, first.AddDays(-i))
	}
	padded = append(padded, dates...)
	for i := 1; i <= trail; i++ {
		padded = append(padded, last.AddDays(i))
	}
	return padded
}

// MonthGrid 返回按周分组的日历，每周 7 天。
func MonthGrid(month time.Month, year int) [][]Date {
	padded := Pad(MonthDates(month, year))
	weeks := make([][]Date, 0, len(padded)/7)
	for i := 0; i+7 <= len(padded); i += 7 {
		weeks = append(weeks, padded[i:i+7:i+7])
	}
	return weeks
}

// Next 返回下一个月，十二月之后进入下一年。
func Next(month time.Month, year int) (time.Month, int) {
	if month == time.December {
		return time.January, year + 1
	}
	return month + 1, year
}

// Previous 返回上一个月，一月之前回到上一年。
func Previous(month time.Month, year int) (time.Month, int) {
	if month == time.January {
		return time.December, year - 1
	}
	return month - 1, year
}
