// Package clock abstracts time so expiry and cooldown logic can run against
// a deterministic clock in tests.
package clock

import "time"

// Clocker returns the current time.
type Clocker interface {
	Now() time.Time
}

// System is the production Clocker backed by time.Now in UTC.
type System struct{}

// New returns the system clock.
func New() System { return System{} }

func (System) Now() time.Time { return time.Now().UTC() }
