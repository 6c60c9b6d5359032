//go:build !unix

package cli

import "os"

var (
	pauseSignal  os.Signal
	resumeSignal os.Signal
)
