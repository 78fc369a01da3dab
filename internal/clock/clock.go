// Package clock lets services take "now" as a dependency.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// Func adapts a function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }

// System reads the wall clock in the server's local time zone.
var System Clock = Func(time.Now)
