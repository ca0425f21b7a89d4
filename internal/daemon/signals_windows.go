//go:build windows

package daemon

import "syscall"

// TriggerSignal has no Windows equivalent; signalling it fails there.
const TriggerSignal = syscall.Signal(0x1e)
