//go:build linux

package regio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOpenUIOKeepsErrno(t *testing.T) {
	dev := filepath.Join(t.TempDir(), "uio0")
	if err := os.WriteFile(dev, nil, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := OpenUIO(dev, 0)
	if !errors.Is(err, unix.EINVAL) {
		t.Fatalf("want EINVAL in chain, got %v", err)
	}
}
