//go:build !windows

package credstore

import "golang.org/x/sys/unix"

// flockLock acquires an exclusive advisory lock on fd.
func flockLock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_EX)
}

func flockUnlock(fd uintptr) error {
	return unix.Flock(int(fd), unix.LOCK_UN)
}
