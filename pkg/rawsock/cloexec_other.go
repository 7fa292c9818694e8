// +build !linux

package rawsock

import "golang.org/x/sys/unix"

// No SOCK_CLOEXEC at open time, set the flag after the fact. Best
// effort: a failure here only weakens fd hygiene across exec.
const sockCloexec = 0

func ensureCloexec(fd int) {
	unix.CloseOnExec(fd)
}
