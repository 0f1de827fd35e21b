// Package system provides the real-time clock used outside of tests.
package system

import "time"

// Clock implements crawler.Clock over time.Now. Timestamps are UTC so
// frontmatter Fetched lines are stable across host timezones.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
