// Package freshness decides whether cached external facts may still be served.
package freshness

import "time"

const DefaultHorizonDays = 30

// IsFresh reports whether data fetched at fetchedAt is within horizonDays of now.
// A non-positive horizon falls back to DefaultHorizonDays.
func IsFresh(fetchedAt time.Time, horizonDays int) bool {
	return IsFreshAt(fetchedAt, Horizon(horizonDays), time.Now())
}

// IsFreshAt is IsFresh with an explicit clock. Zero fetchedAt is never fresh;
// data is stale once its age exceeds the horizon.
func IsFreshAt(fetchedAt time.Time, horizon time.Duration, now time.Time) bool {
	if fetchedAt.IsZero() {
		return false
	}
	if horizon <= 0 {
		horizon = Horizon(DefaultHorizonDays)
	}
	return now.Sub(fetchedAt) <= horizon
}

func Horizon(days int) time.Duration {
	if days <= 0 {
		days = DefaultHorizonDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// Policy binds a horizon and a clock for read paths.
type Policy struct {
	HorizonDays int
	Now         func() time.Time
}

func (p Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Policy) Fresh(fetchedAt time.Time) bool {
	return IsFreshAt(fetchedAt, Horizon(p.HorizonDays), p.now())
}

// Age returns how long ago fetchedAt was.
func (p Policy) Age(fetchedAt time.Time) time.Duration {
	if fetchedAt.IsZero() {
		return 0
	}
	return p.now().Sub(fetchedAt)
}
