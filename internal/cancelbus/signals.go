package cancelbus

import (
	"os"
	"os/signal"
)

// InstallSignalHandler arranges for OS interrupt signals to publish
// Interrupt on the first delivery and SecondInterrupt on any further
// delivery within the same run, then returns a cleanup func that
// restores default signal handling and stops the internal goroutine.
// The platform-specific signal set is defined in signals_unix.go and
// signals_windows.go.
func (b *Bus) InstallSignalHandler() (cleanup func()) {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, interruptSignals()...)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					return
				}
				if b.InterruptLevel() == 0 {
					b.Publish(Interrupt)
				} else {
					b.Publish(SecondInterrupt)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(done)
	}
}
