//go:build windows

package player

import (
	"errors"
	"os"
)

var errProcessDone = os.ErrProcessDone

// ErrPauseUnsupported - на Windows нет SIGSTOP.
var ErrPauseUnsupported = errors.New("pause is not supported on windows")

func pauseProcess(*os.Process) error {
	return ErrPauseUnsupported
}

func resumeProcess(*os.Process) error {
	return ErrPauseUnsupported
}
