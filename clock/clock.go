// Package clock provides the time abstraction behind Config.Clock, so a
// fake clock can be swapped in. The engine itself does not read the clock:
// memory-pressure sampling, dispatch and range-partitioner init are not
// timed.
package clock

import "github.com/zoobzio/clockz"

// Clock provides time operations for deterministic testing.
type Clock = clockz.Clock

// Timer represents a single event timer.
type Timer = clockz.Timer

// Ticker delivers ticks at intervals.
type Ticker = clockz.Ticker

// Real is the default Clock using wall-clock time.
var Real Clock = clockz.RealClock
