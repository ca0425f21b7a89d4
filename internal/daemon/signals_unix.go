//go:build !windows

package daemon

import "syscall"

// TriggerSignal asks a running daemon to run every job now.
const TriggerSignal = syscall.SIGUSR1
