package kernel

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// loggerPtr stores the active logger. By default kernel produces no output.
var loggerPtr atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.Nop()
	loggerPtr.Store(&l)
}

// SetLogger configures the logger used for BVH rebuild diagnostics.
// Pass nil to restore the silent default.
func SetLogger(l *zerolog.Logger) {
	if l == nil {
		nop := zerolog.Nop()
		l = &nop
	}
	loggerPtr.Store(l)
}

func logger() *zerolog.Logger {
	return loggerPtr.Load()
}
