package exam

import "time"

// Ticker abstracts time.Ticker so tests can drive the countdown manually.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers. The real implementation wraps the time package.
type Clock interface {
	NewTicker(d time.Duration) Ticker
}

// RealClock is the wall-clock implementation used in production.
var RealClock Clock = realClock{}

type realClock struct{}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
