package plan

import (
	"time"

	"quickplan/internal/calendar"
)

// Calendar 是计划页面上一个月的日历视图。
type Calendar struct {
	PlanURLID  string
	Month      time.Month
	Year       int
	Today      calendar.Date
	Weeks      [][]calendar.Date
	Selections map[calendar.Date][]string

	PrevMonth time.Month
	PrevYear  int
	NextMonth time.Month
	NextYear  int
}

// Names 返回某天标记可用的参与者名。
func (c *Calendar) Names(d calendar.Date) []string {
	return c.Selections[d]
}

// Count 返回某天标记可用的人数。
func (c *Calendar) Count(d calendar.Date) int {
	return len(c.Selections[d])
}

// InMonth 判断日期是否属于当前显示的月份，补齐的日期返回 false。
func (c *Calendar) InMonth(d calendar.Date) bool {
	return d.Month == c.Month && d.Year == c.Year
}

// IsToday 判断日期是否为今天。
func (c *Calendar) IsToday(d calendar.Date) bool {
	return d == c.Today
}

// Selected 判断某参与者是否标记了该天。
func (c *Calendar) Selected(d calendar.Date, userName string) bool {
	for _, name := range c.Selections[d] {
		if name == userName {
			return true
		}
	}
	return false
}
