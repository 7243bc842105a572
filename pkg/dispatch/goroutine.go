package dispatch

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID returns the current goroutine's numeric id, parsed from the
// runtime stack header ("goroutine N [running]:"). Used only to detect
// re-entrant submissions from the consumer goroutine, which would deadlock
// waiting on a reply the consumer itself must produce.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Skip "goroutine " and parse digits up to the next space.
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
