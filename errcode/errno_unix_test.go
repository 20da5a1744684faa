//go:build unix

package errcode

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestErrno(t *testing.T) {
	cases := []struct {
		err  error
		want unix.Errno
	}{
		{nil, 0},
		{NotSupported, unix.ENOTSUP},
		{New("x", InvalidArgument, ""), unix.EINVAL},
		{Busy, unix.EBUSY},
		{Timeout, unix.ETIMEDOUT},
		{Unroutable, unix.ENODEV},
		{errors.New("other"), unix.EIO},
	}
	for _, c := range cases {
		if got := Errno(c.err); got != c.want {
			t.Fatalf("Errno(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
