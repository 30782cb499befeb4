package calendar

import (
	"testing"
	"time"
)

func TestMonthDates(t *testing.T) {
	cases := []struct {
		month time.Month
		year  int
		want  int
	}{
		{time.February, 2024, 29},
		{time.February, 2027, 28},
		{time.January, 2024, 31},
		{time.April, 2024, 30},
	}
	for _, tc := range cases {
		if got := len(MonthDates(tc.month, tc.year)); got != tc.want {
			t.Fatalf("%s %d: got %d dates, want %d", tc.month, tc.year, got, tc.want)
		}
	}
	if wd := MonthDates(time.April, 2024)[0].Weekday(); wd != time.Monday {
		t.Fatalf("1 April 2024 should be a Monday, got %s", wd)
	}
}

func TestPad(t *testing.T) {
	cases := []struct {
		month time.Month
		year  int
		want  int
	}{
		{time.February, 2024, 35},
		{time.February, 2027, 28},
		{time.January, 2024, 35},
		{time.April, 2024, 35},
	}
	for _, tc := range cases {
		padded := Pad(MonthDates(tc.month, tc.year))
		if len(padded) != tc.want {
			t.Fatalf("%s %d: got %d padded dates, want %d", tc.month, tc.year, len(padded), tc.want)
		}
		if padded[0].Weekday() != time.Monday {
			t.Fatalf("%s %d: first day is %s", tc.month, tc.year, padded[0].Weekday())
		}
		if padded[len(padded)-1].Weekday() != time.Sunday {
			t.Fatalf("%s %d: last day is %s", tc.month, tc.year, padded[len(padded)-1].Weekday())
		}
		for i := 1; i < len(padded); i++ {
			if padded[i] != padded[i-1].AddDays(1) {
				t.Fatalf("%s %d: dates not contiguous at %d", tc.month, tc.year, i)
			}
		}
	}
	if Pad(nil) != nil {
		t.Fatalf("padding no dates should return nothing")
	}
}

func TestMonthGrid(t *testing.T) {
	grid := MonthGrid(time.February, 2024)
	if len(grid) != 5 {
		t.Fatalf("expected 5 weeks, got %d", len(grid))
	}
	if grid[0][0] != NewDate(2024, time.January, 29) {
		t.Fatalf("unexpected first cell %s", grid[0][0])
	}
	if grid[4][6] != NewDate(2024, time.March, 3) {
		t.Fatalf("unexpected last cell %s", grid[4][6])
	}
}

func TestNextPrevious(t *testing.T) {
	if m, y := Next(time.December, 2024); m != time.January || y != 2025 {
		t.Fatalf("unexpected next: %s %d", m, y)
	}
	if m, y := Next(time.March, 2024); m != time.April || y != 2024 {
		t.Fatalf("unexpected next: %s %d", m, y)
	}
	if m, y := Previous(time.January, 2024); m != time.December || y != 2023 {
		t.Fatalf("unexpected previous: %s %d", m, y)
	}
	if m, y := Previous(time.March, 2024); m != time.February || y != 2024 {
		t.Fatalf("unexpected previous: %s %d", m, y)
	}
}

func TestParse(t *testing.T) {
	d, err := Parse("2024-02-29")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Fatalf("round trip mismatch: %s", d)
	}
	if _, err := Parse("2023-02-29"); err == nil {
		t.Fatalf("expected error for invalid date")
	}
}
