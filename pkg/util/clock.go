package util

import "time"

// Clock stamps trade events
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports T; replays and tests pin time with it
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }
