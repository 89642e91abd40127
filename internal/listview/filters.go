package listview

import (
	"cmp"
	"fmt"
	"strings"
	"time"
)

// isAll reports whether a filter value means "no constraint".
func isAll(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, "all")
}

// FieldEquals keeps items whose field equals want, ignoring case. An empty
// or "all" value yields an inactive filter.
func FieldEquals[T any](want string, field func(T) string) Filter[T] {
	if isAll(want) {
		return nil
	}
	want = strings.TrimSpace(want)
	return func(it T) bool {
		return strings.EqualFold(field(it), want)
	}
}

// ValueBetween keeps items whose value lies in [lo, hi]. A nil bound is
// open.
func ValueBetween[T any](lo, hi *float64, value func(T) float64) Filter[T] {
	if lo == nil && hi == nil {
		return nil
	}
	return func(it T) bool {
		v := value(it)
		if lo != nil && v < *lo {
			return false
		}
		if hi != nil && v > *hi {
			return false
		}
		return true
	}
}

// DateRange is a symbolic trailing window.
type DateRange string

const (
	RangeAll     DateRange = "all"
	RangeToday   DateRange = "today"
	RangeWeek    DateRange = "week"
	RangeMonth   DateRange = "month"
	RangeQuarter DateRange = "quarter"
	RangeYear    DateRange = "year"
)

// ParseDateRange accepts the symbolic names; empty means all.
func ParseDateRange(s string) (DateRange, error) {
	switch r := DateRange(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeToday, RangeWeek, RangeMonth, RangeQuarter, RangeYear:
		return r, nil
	default:
		return "", fmt.Errorf("unknown date range %q", s)
	}
}

// Cutoff resolves the range against now. ok is false for RangeAll.
func (r DateRange) Cutoff(now time.Time) (cutoff time.Time, ok bool) {
	switch r {
	case RangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case RangeWeek:
		return now.AddDate(0, 0, -7), true
	case RangeMonth:
		return now.AddDate(0, -1, 0), true
	case RangeQuarter:
		return now.AddDate(0, -3, 0), true
	case RangeYear:
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

// InDateRange keeps items dated at or after the range's cutoff.
func InDateRange[T any](r DateRange, now time.Time, dateOf func(T) time.Time) Filter[T] {
	cutoff, ok := r.Cutoff(now)
	if !ok {
		return nil
	}
	return func(it T) bool {
		return !dateOf(it).Before(cutoff)
	}
}

// By builds a comparator from an ordered key.
func By[T any, K cmp.Ordered](key func(T) K) Compare[T] {
	return func(a, b T) int {
		return cmp.Compare(key(a), key(b))
	}
}

// ByFold builds a case-insensitive string comparator.
func ByFold[T any](key func(T) string) Compare[T] {
	return func(a, b T) int {
		return strings.Compare(strings.ToLower(key(a)), strings.ToLower(key(b)))
	}
}

// ByTime builds a chronological comparator.
func ByTime[T any](key func(T) time.Time) Compare[T] {
	return func(a, b T) int {
		return key(a).Compare(key(b))
	}
}
