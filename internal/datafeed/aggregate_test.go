package datafeed

import "testing"

func dailyBars(startMs int64, n int) []Bar {
	bars := make([]Bar, 0, n)
	for i := 0; i < n; i++ {
		p := float64(100 + i)
		bars = append(bars, Bar{
			Time:   startMs + int64(i)*msPerDay,
			Open:   p,
			High:   p + 5,
			Low:    p - 5,
			Close:  p + 1,
			Volume: 10,
		})
	}
	return bars
}

// go test -v --run TestAggregateWeeks
func TestAggregateWeeks(t *testing.T) {
	// 2024-01-01 is a Monday
	daily := dailyBars(ms(2024, 1, 1, 0, 0), 14)

	weeks := Aggregate(daily, ResolutionWeekly)
	if len(weeks) != 2 {
		t.Fatalf("expected 2 weeks, got %d", len(weeks))
	}

	w := weeks[0]
	if w.Time != ms(2024, 1, 1, 0, 0) {
		t.Errorf("first week starts at %d", w.Time)
	}
	if w.Open != 100 || w.Close != 107 || w.High != 111 || w.Low != 95 || w.Volume != 70 {
		t.Errorf("unexpected first week: %+v", w)
	}
	if weeks[1].Time != ms(2024, 1, 8, 0, 0) || weeks[1].Open != 107 || weeks[1].Close != 114 {
		t.Errorf("unexpected second week: %+v", weeks[1])
	}
}

// go test -v --run TestAggregateMonths
func TestAggregateMonths(t *testing.T) {
	daily := dailyBars(ms(2024, 1, 30, 0, 0), 4) // Jan 30, 31, Feb 1, 2

	months := Aggregate(daily, ResolutionMonthly)
	if len(months) != 2 {
		t.Fatalf("expected 2 months, got %d", len(months))
	}
	if months[0].Time != ms(2024, 1, 1, 0, 0) || months[0].Volume != 20 {
		t.Errorf("unexpected january: %+v", months[0])
	}
	if months[1].Time != ms(2024, 2, 1, 0, 0) || months[1].Open != 102 {
		t.Errorf("unexpected february: %+v", months[1])
	}
}

// go test -v --run TestAggregateNonCalendar
func TestAggregateNonCalendar(t *testing.T) {
	if got := Aggregate(dailyBars(ms(2024, 1, 1, 0, 0), 3), ResolutionDaily); got != nil {
		t.Errorf("expected nil for non-calendar resolution, got %v", got)
	}
	if got := Aggregate(nil, ResolutionWeekly); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
