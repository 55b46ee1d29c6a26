package debug

import (
	"io"
	"sync/atomic"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var enabled int32 = 0

// Toggle turns on/off debug mode
func Toggle(on bool) {
	val := int32(0)
	if on {
		val = 1
	}
	atomic.StoreInt32(&enabled, val)
}

// Enabled reports whether debug mode is on.
func Enabled() bool { return atomic.LoadInt32(&enabled) == 1 }

// Logger returns a logfmt logger writing to w. Debug lines are only emitted
// when debug mode was on at the time the logger was created.
func Logger(w io.Writer) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if Enabled() {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowInfo())
}
