package core

import "runtime"

// getGoroutineID extracts the calling goroutine's numeric id by parsing the
// header line of runtime.Stack. It is used only to recognize re-entrant
// calls into a Context that is already being dispatched by the current
// goroutine (see Context.Feed) — never for scheduling decisions.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
