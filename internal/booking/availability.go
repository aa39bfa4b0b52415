package booking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SlotStepMinutes is the granularity of candidate slot start times.
const SlotStepMinutes = 15

// EffectiveDurationPrice resolves the duration and price that apply when a
// given staff member performs a service. The StaffService override wins when
// present, otherwise the service defaults apply.
func EffectiveDurationPrice(svc *Service, link *StaffService) (durationMinutes, priceCents int) {
	durationMinutes = svc.DurationMinutes
	priceCents = svc.PriceCents
	if link != nil {
		if link.DurationMinutesOverride != nil && *link.DurationMinutesOverride > 0 {
			durationMinutes = *link.DurationMinutesOverride
		}
		if link.PriceCentsOverride != nil {
			priceCents = *link.PriceCentsOverride
		}
	}
	return durationMinutes, priceCents
}

// BuildSlots generates the bookable slots for one calendar day.
//
// dayStart must be local midnight of the requested date in the tenant's
// timezone. Every active rule for the day contributes candidate starts at
// SlotStepMinutes granularity; a candidate survives only if the full
// [start, start+duration) interval fits inside the rule window and does not
// overlap any busy interval. Overlap is half-open: touching endpoints are
// allowed. Rules with start >= end are ignored.
//
// The result is ordered by start time across all rule windows.
func BuildSlots(dayStart time.Time, rules []AvailabilityRule, busy []Interval, durationMinutes, priceCents int) []Slot {
	if durationMinutes <= 0 {
		return nil
	}

	slots := make([]Slot, 0)
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		windowStart, err := parseClock(rule.StartTime)
		if err != nil {
			continue
		}
		windowEnd, err := parseClock(rule.EndTime)
		if err != nil {
			continue
		}
		if windowStart >= windowEnd {
			continue
		}

		for m := windowStart; m+durationMinutes <= windowEnd; m += SlotStepMinutes {
			start := dayStart.Add(time.Duration(m) * time.Minute)
			end := start.Add(time.Duration(durationMinutes) * time.Minute)
			if overlapsAny(start, end, busy) {
				continue
			}
			slots = append(slots, Slot{
				Start:           start,
				End:             end,
				DurationMinutes: durationMinutes,
				PriceCents:      priceCents,
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(start, end, b.Start, b.End) {
			return true
		}
	}
	return false
}

// parseClock converts "HH:MM" or "HH:MM:SS" into minutes from midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock time %q out of range", s)
	}
	return hour*60 + minute, nil
}
