package confine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Guard releases the cursor when the process receives one of sigs (SIGINT,
// SIGTERM and SIGHUP when none are given), then calls onSignal. It stops when
// ctx ends.
func Guard(ctx context.Context, c *Controller, onSignal func(os.Signal), sigs ...os.Signal) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		select {
		case <-ctx.Done():
		case sig := <-ch:
			c.EmergencyRelease("signal " + sig.String())
			if onSignal != nil {
				onSignal(sig)
			}
		}
	}()
}

// RecoverRelease must be deferred directly. It releases the cursor when the
// goroutine panics and then re-raises the panic.
func RecoverRelease(c *Controller) {
	if r := recover(); r != nil {
		c.EmergencyRelease(fmt.Sprintf("panic: %v", r))
		panic(r)
	}
}
