//go:build unix

package cli

import (
	"os"
	"syscall"
)

var (
	pauseSignal  os.Signal = syscall.SIGUSR1
	resumeSignal os.Signal = syscall.SIGUSR2
)
