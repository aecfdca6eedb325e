// Package politeness enforces the compliance gate every fetch must pass
// through before it touches the network: a per-host minimum gap (scaled by
// the robots-derived delay multiplier) and a global concurrency ceiling.
package politeness

import "time"

// hostState tracks, per host, the earliest time a new request may start.
type hostState struct {
	nextAllowed time.Time
}
