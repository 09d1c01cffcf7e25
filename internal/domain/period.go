package domain

import (
	"errors"
	"fmt"
)

// Period identifies a candle bucket width.
type Period string

// Supported candle periods.
const (
	Period5m  Period = "5m"
	Period15m Period = "15m"
	Period30m Period = "30m"
	Period1h  Period = "1h"
	Period4h  Period = "4h"
	Period1d  Period = "1d"
)

// ErrUnknownPeriod is returned when a period string is not one of the
// supported values.
var ErrUnknownPeriod = errors.New("unknown period")

// periodSeconds maps each period to its bucket width in seconds.
var periodSeconds = map[Period]int64{
	Period5m:  300,
	Period15m: 900,
	Period30m: 1800,
	Period1h:  3600,
	Period4h:  14400,
	Period1d:  86400,
}

// allPeriods lists the supported periods in ascending bucket-width order.
var allPeriods = []Period{Period5m, Period15m, Period30m, Period1h, Period4h, Period1d}

// AllPeriods returns the supported periods in ascending bucket-width order.
// The returned slice is a copy and safe to modify.
func AllPeriods() []Period {
	out := make([]Period, len(allPeriods))
	copy(out, allPeriods)
	return out
}

// ParsePeriod validates a period string. Returns ErrUnknownPeriod for
// anything outside the supported set.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if _, ok := periodSeconds[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

// Valid reports whether the period is one of the supported values.
func (p Period) Valid() bool {
	_, ok := periodSeconds[p]
	return ok
}

// Seconds returns the bucket width in seconds. Panics on an unknown period;
// callers are expected to validate with ParsePeriod first.
func (p Period) Seconds() int64 {
	sec, ok := periodSeconds[p]
	if !ok {
		panic(fmt.Sprintf("domain: unknown period %q", p))
	}
	return sec
}

// BucketStart returns the start of the bucket containing ts, aligned down to
// the period boundary.
func (p Period) BucketStart(ts int64) int64 {
	sec := p.Seconds()
	return ts / sec * sec
}
