//go:build unix

package errcode

import "golang.org/x/sys/unix"

// Errno translates err to the host errno convention. Only the outermost
// boundary (a framework shim) should need this.
func Errno(err error) unix.Errno {
	switch Of(err) {
	case OK:
		return 0
	case NotSupported:
		return unix.ENOTSUP
	case InvalidArgument, RangeInvalid, UnsupportedRate, InvalidCombination:
		return unix.EINVAL
	case Busy, Conflict, Exhausted:
		return unix.EBUSY
	case Timeout:
		return unix.ETIMEDOUT
	case Unroutable:
		return unix.ENODEV
	default:
		return unix.EIO
	}
}
