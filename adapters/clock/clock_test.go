package clock

import (
	"testing"
	"time"
)

func TestReal_Now(t *testing.T) {
	before := time.Now()
	got := Real{}.Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("Real.Now() = %v outside [%v, %v]", got, before, after)
	}
}

func TestFake_SetAndAdvance(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	c := NewFake(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}

	c.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if !c.Now().Equal(want) {
		t.Errorf("after Advance: Now() = %v, want %v", c.Now(), want)
	}

	later := start.AddDate(0, 1, 0)
	c.Set(later)
	if !c.Now().Equal(later) {
		t.Errorf("after Set: Now() = %v, want %v", c.Now(), later)
	}
}
