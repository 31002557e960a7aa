//go:build !windows

package cancelbus

import (
	"os"
	"syscall"
)

// interruptSignals returns the signals that should be interpreted as
// an interrupt request on POSIX systems: SIGINT and SIGTERM.
func interruptSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
