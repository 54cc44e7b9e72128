// Package timeframe owns the search-window policy shared by every caller
// that needs concrete time bounds.
package timeframe

import (
	"strings"
	"time"
)

// Kind classifies how a window was expressed.
type Kind string

const (
	Specific Kind = "specific"
	Relative Kind = "relative"
	None     Kind = "none"
)

// DefaultLookback is the window used when no usable bounds exist.
const DefaultLookback = 5 * time.Minute

// Window is a resolved time range. Start and End are both zero when Type is None.
type Window struct {
	Type        Kind      `json:"type"`
	Start       time.Time `json:"startTime"`
	End         time.Time `json:"endTime"`
	Explanation string    `json:"explanation"`
}

// Bounded reports whether both bounds are set.
func (w Window) Bounded() bool {
	return !w.Start.IsZero() && !w.End.IsZero()
}

// FromStrings builds a window from ISO8601 bounds. Anything that does not
// yield two parseable bounds with start <= end collapses to None.
func FromStrings(kind, start, end, explanation string) Window {
	k := Kind(strings.ToLower(strings.TrimSpace(kind)))
	if k == None || (k != Specific && k != Relative) {
		return Window{Type: None, Explanation: explanation}
	}
	s, okS := parse(start)
	e, okE := parse(end)
	if !okS || !okE || e.Before(s) {
		return Window{Type: None, Explanation: explanation}
	}
	return Window{Type: k, Start: s, End: e, Explanation: explanation}
}

func parse(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Default is the fallback window ending at now.
func Default(now time.Time, lookback time.Duration) Window {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return Window{
		Type:        Relative,
		Start:       now.Add(-lookback).UTC(),
		End:         now.UTC(),
		Explanation: "defaulted to last " + lookback.String(),
	}
}

// Normalize returns w when it is bounded, otherwise the default window
// relative to now. now is always the caller's call time.
func Normalize(w Window, now time.Time, lookback time.Duration) Window {
	if w.Bounded() {
		return w
	}
	return Default(now, lookback)
}

// StartString formats the lower bound for the capture API ("" when unbounded).
func (w Window) StartString() string {
	if w.Start.IsZero() {
		return ""
	}
	return w.Start.UTC().Format(time.RFC3339)
}

// EndString formats the upper bound for the capture API ("" when unbounded).
func (w Window) EndString() string {
	if w.End.IsZero() {
		return ""
	}
	return w.End.UTC().Format(time.RFC3339)
}
