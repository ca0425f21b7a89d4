package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalHandler turns OS signals into shutdown, reload and trigger requests.
type SignalHandler struct {
	signals chan os.Signal
}

// NewSignalHandler registers for SIGINT, SIGTERM, SIGHUP and TriggerSignal.
func NewSignalHandler() *SignalHandler {
	h := &SignalHandler{signals: make(chan os.Signal, 1)}
	signal.Notify(h.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, TriggerSignal)
	return h
}

// Wait blocks until a signal arrives or ctx is cancelled. It returns nil on
// cancellation.
func (h *SignalHandler) Wait(ctx context.Context) os.Signal {
	select {
	case sig := <-h.signals:
		return sig
	case <-ctx.Done():
		return nil
	}
}

// IsReload reports whether sig asks for a configuration reload.
func IsReload(sig os.Signal) bool {
	return sig == syscall.SIGHUP
}

// IsTrigger reports whether sig asks for an immediate run of every job.
func IsTrigger(sig os.Signal) bool {
	return sig == TriggerSignal
}

// Cleanup stops signal delivery.
func (h *SignalHandler) Cleanup() {
	signal.Stop(h.signals)
}
