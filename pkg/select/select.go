// Package _select waits for readability on raw socket descriptors with a
// deadline. The sockets themselves are blocking; this is how the probe
// drivers put a timeout on top of them.
package _select

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type Select struct {
	fds  []int
	rfds *syscall.FdSet
}

func NewSelect() *Select {
	return &Select{
		rfds: &syscall.FdSet{},
	}
}

func (s *Select) Add(fd int) {
	s.fds = append(s.fds, fd)
}

// CanRead blocks up to waitTime and returns the descriptor that became
// readable, or -1 when the wait timed out. An interrupted select is
// restarted with the same timeout.
func (s *Select) CanRead(waitTime time.Duration) (int, error) {
	var max int
	FD_ZERO(s.rfds)
	for _, fd := range s.fds {
		if fd > 0 {
			FD_SET(s.rfds, fd)
			if fd > max {
				max = fd
			}
		}
	}
	if max <= 0 {
		return -1, nil
	}
	timeout := syscall.NsecToTimeval(waitTime.Nanoseconds())
selectAgain:
	err := SysSelect(max+1, s.rfds, nil, nil, &timeout)
	if err != nil {
		if err == unix.EINTR {
			goto selectAgain
		}
		return -1, err
	}
	for _, fd := range s.fds {
		if fd > 0 && FD_ISSET(s.rfds, fd) {
			return fd, nil
		}
	}
	return -1, nil
}

func fdget(fd int, fds *syscall.FdSet) (index, offset int) {
	index = fd / (syscall.FD_SETSIZE / len(fds.Bits)) % len(fds.Bits)
	offset = fd % (syscall.FD_SETSIZE / len(fds.Bits))
	return
}

func FD_SET(p *syscall.FdSet, i int) {
	idx, pos := fdget(i, p)
	p.Bits[idx] |= 1 << uint(pos)
}

func FD_ISSET(p *syscall.FdSet, i int) bool {
	idx, pos := fdget(i, p)
	return p.Bits[idx]&(1<<uint(pos)) != 0
}

func FD_ZERO(p *syscall.FdSet) {
	for i := range p.Bits {
		p.Bits[i] = 0
	}
}
