package booking

import (
	"testing"
	"time"
)

// Monday, Jan 5 2026.
var monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func at(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return monday.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func TestBuildSlots_MorningWindow(t *testing.T) {
	rules := []AvailabilityRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Active: true},
	}

	slots := BuildSlots(monday, rules, nil, 30, 4500)

	// 09:00 through 11:30 at 15-minute steps.
	if len(slots) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(t, 9, 0)) {
		t.Errorf("first slot should start 09:00, got %s", slots[0].Start)
	}
	if !slots[10].Start.Equal(at(t, 11, 30)) {
		t.Errorf("last slot should start 11:30, got %s", slots[10].Start)
	}
	for _, s := range slots {
		if s.DurationMinutes != 30 || s.PriceCents != 4500 {
			t.Fatalf("slot carries wrong duration/price: %+v", s)
		}
		if !s.End.Equal(s.Start.Add(30 * time.Minute)) {
			t.Fatalf("slot end must be start + duration: %+v", s)
		}
	}
}

func TestBuildSlots_ConflictBoundaries(t *testing.T) {
	rules := []AvailabilityRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", Active: true},
	}
	busy := []Interval{
		{Start: at(t, 10, 0), End: at(t, 10, 30)},
	}

	slots := BuildSlots(monday, rules, busy, 30, 4500)

	hasStart := func(hour, minute int) bool {
		want := at(t, hour, minute)
		for _, s := range slots {
			if s.Start.Equal(want) {
				return true
			}
		}
		return false
	}

	// 09:45 would end 10:15, 10:00 and 10:15 overlap outright.
	for _, excluded := range [][2]int{{9, 45}, {10, 0}, {10, 15}} {
		if hasStart(excluded[0], excluded[1]) {
			t.Errorf("slot %02d:%02d overlaps the appointment and must be excluded", excluded[0], excluded[1])
		}
	}
	// Touching endpoints are not overlaps.
	if !hasStart(9, 30) {
		t.Error("slot 09:30 ends exactly at the appointment start and must be included")
	}
	if !hasStart(10, 30) {
		t.Error("slot 10:30 starts exactly at the appointment end and must be included")
	}
	if len(slots) != 8 {
		t.Fatalf("expected 8 slots, got %d", len(slots))
	}
}

func TestBuildSlots_MultipleWindowsOrdered(t *testing.T) {
	rules := []AvailabilityRule{
		{DayOfWeek: 1, StartTime: "13:00", EndTime: "15:00", Active: true},
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "11:00", Active: true},
	}

	slots := BuildSlots(monday, rules, nil, 60, 4500)

	// floor((120-60)/15)+1 = 5 per window.
	if len(slots) != 10 {
		t.Fatalf("expected 10 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if !slots[i-1].Start.Before(slots[i].Start) {
			t.Fatalf("slots out of order at %d: %s >= %s", i, slots[i-1].Start, slots[i].Start)
		}
	}
	if !slots[0].Start.Equal(at(t, 9, 0)) {
		t.Errorf("first slot should come from the morning window, got %s", slots[0].Start)
	}
}

func TestBuildSlots_SlotCountFormula(t *testing.T) {
	cases := []struct {
		start, end string
		duration   int
		want       int
	}{
		{"09:00", "12:00", 30, 11}, // floor((180-30)/15)+1
		{"09:00", "12:00", 45, 10},
		{"09:00", "09:30", 30, 1},
		{"09:00", "09:29", 30, 0}, // window shorter than service
		{"09:00", "10:00", 60, 1},
		{"09:00", "10:00", 61, 0},
	}

	for _, tc := range cases {
		rules := []AvailabilityRule{{DayOfWeek: 1, StartTime: tc.start, EndTime: tc.end, Active: true}}
		got := len(BuildSlots(monday, rules, nil, tc.duration, 0))
		if got != tc.want {
			t.Errorf("window %s-%s duration %d: expected %d slots, got %d",
				tc.start, tc.end, tc.duration, tc.want, got)
		}
	}
}

func TestBuildSlots_IgnoresBadRules(t *testing.T) {
	rules := []AvailabilityRule{
		{DayOfWeek: 1, StartTime: "12:00", EndTime: "09:00", Active: true},  // inverted
		{DayOfWeek: 1, StartTime: "10:00", EndTime: "10:00", Active: true},  // empty
		{DayOfWeek: 1, StartTime: "garbage", EndTime: "11:00", Active: true},
		{DayOfWeek: 1, StartTime: "14:00", EndTime: "16:00", Active: false}, // inactive
	}

	if got := BuildSlots(monday, rules, nil, 30, 0); len(got) != 0 {
		t.Fatalf("expected no slots from invalid rules, got %d", len(got))
	}
}

func TestBuildSlots_Deterministic(t *testing.T) {
	rules := []AvailabilityRule{
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "18:00", Active: true},
	}
	busy := []Interval{
		{Start: at(t, 11, 0), End: at(t, 11, 45)},
		{Start: at(t, 15, 30), End: at(t, 16, 0)},
	}

	first := BuildSlots(monday, rules, busy, 30, 2500)
	second := BuildSlots(monday, rules, busy, 30, 2500)

	if len(first) != len(second) {
		t.Fatalf("repeated computation differs in length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated computation differs at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestEffectiveDurationPrice(t *testing.T) {
	svc := &Service{DurationMinutes: 30, PriceCents: 4500}

	if d, p := EffectiveDurationPrice(svc, nil); d != 30 || p != 4500 {
		t.Errorf("no link: expected defaults, got d=%d p=%d", d, p)
	}

	if d, p := EffectiveDurationPrice(svc, &StaffService{}); d != 30 || p != 4500 {
		t.Errorf("link without overrides: expected defaults, got d=%d p=%d", d, p)
	}

	dur := 45
	price := 6000
	link := &StaffService{DurationMinutesOverride: &dur, PriceCentsOverride: &price}
	if d, p := EffectiveDurationPrice(svc, link); d != 45 || p != 6000 {
		t.Errorf("full override: expected 45/6000, got d=%d p=%d", d, p)
	}

	durOnly := &StaffService{DurationMinutesOverride: &dur}
	if d, p := EffectiveDurationPrice(svc, durOnly); d != 45 || p != 4500 {
		t.Errorf("duration-only override: expected 45/4500, got d=%d p=%d", d, p)
	}
}

func TestOverlaps(t *testing.T) {
	a := at(t, 10, 0)
	b := at(t, 10, 30)
	c := at(t, 11, 0)

	if Overlaps(a, b, b, c) {
		t.Error("touching intervals must not overlap")
	}
	if !Overlaps(a, c, b, c) {
		t.Error("contained interval must overlap")
	}
	if !Overlaps(a, b, a.Add(time.Minute), c) {
		t.Error("one-minute intersection must overlap")
	}
}
