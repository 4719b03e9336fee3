//go:build !windows

package player

import (
	"os"
	"syscall"
)

var errProcessDone = os.ErrProcessDone

func pauseProcess(p *os.Process) error {
	return p.Signal(syscall.SIGSTOP)
}

func resumeProcess(p *os.Process) error {
	return p.Signal(syscall.SIGCONT)
}
