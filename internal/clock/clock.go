// Package clock is the single time source for plans, approvals and health
// checks; tests replace NowFunc to move time forward.
package clock

import "time"

// NowFunc returns the current time.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }

// Since returns the time elapsed since t according to NowFunc.
func Since(t time.Time) time.Duration { return Now().Sub(t) }

// SinceUnixNano is Since for a timestamp kept as UnixNano, typically in an atomic.
func SinceUnixNano(nanos int64) time.Duration { return Since(time.Unix(0, nanos)) }
