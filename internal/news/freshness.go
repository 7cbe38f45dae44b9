package news

import "time"

// Freshness is the outcome of an age check. Unknown is a real
// outcome, not an error: the caller decides what to do with items
// whose publication time could not be parsed. Alerting treats
// Unknown as outside the window, the dashboard keeps such items and
// marks the age as unknown.
type Freshness int

const (
	FreshnessWithin Freshness = iota
	FreshnessOutside
	FreshnessUnknown
)

func (f Freshness) String() string {
	switch f {
	case FreshnessWithin:
		return "within"
	case FreshnessOutside:
		return "outside"
	default:
		return "unknown"
	}
}

// ClassifyAge places a publication instant inside or outside the
// window ending at now. A zero or negative window means unbounded.
// Feed clocks skew, so a timestamp ahead of now is not an error; the
// age floor is zero and such items count as within.
func ClassifyAge(publishedAt time.Time, known bool, now time.Time, window time.Duration) Freshness {
	if !known {
		return FreshnessUnknown
	}
	if window <= 0 {
		return FreshnessWithin
	}

	age := now.Sub(publishedAt)
	if age < 0 {
		age = 0
	}
	if age <= window {
		return FreshnessWithin
	}
	return FreshnessOutside
}

// ItemFreshness runs ClassifyAge with the item's own timestamp
// knowledge.
func ItemFreshness(it Item, now time.Time, window time.Duration) Freshness {
	return ClassifyAge(it.PublishedAt, it.TimeKnown, now, window)
}
