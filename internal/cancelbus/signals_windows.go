//go:build windows

package cancelbus

import "os"

// interruptSignals returns the signals that should be interpreted as
// an interrupt request on Windows. Ctrl-Break arrives as os.Interrupt
// through Go's runtime console handler, matching the Ctrl-C case.
func interruptSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
