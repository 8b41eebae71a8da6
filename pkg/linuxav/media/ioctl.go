//go:build linux

package media

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// iowr builds a read-write ioctl request code.
func iowr(typ, nr, size uintptr) uint {
	const (
		iocNrbits    = 8
		iocTypebits  = 8
		iocSizebits  = 14
		iocNrshift   = 0
		iocTypeshift = iocNrshift + iocNrbits
		iocSizeshift = iocTypeshift + iocTypebits
		iocDirshift  = iocSizeshift + iocSizebits
		iocReadWrite = 3
	)

	return uint((iocReadWrite << iocDirshift) | (typ << iocTypeshift) | (nr << iocNrshift) | (size << iocSizeshift))
}

// sysIoctl issues one ioctl system call.
var sysIoctl = func(fd int, req uint, arg unsafe.Pointer) unix.Errno {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	return errno
}

// ioctl retries requests interrupted by a signal.
func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	for {
		switch errno := sysIoctl(fd, req, arg); errno {
		case 0:
			return nil
		case unix.EINTR:
			continue
		default:
			return errno
		}
	}
}
