//go:build linux

package regio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
	"periph.io/x/host/v3/pmem"
)

// Window is a memory-mapped register window.
type Window struct {
	f    *os.File   // UIO mapping
	view *pmem.View // physical mapping
	mem  []byte
}

// OpenUIO maps size bytes of a UIO device (e.g. /dev/uio0) exposing the audio block.
func OpenUIO(dev string, size int) (*Window, error) {
	f, err := os.OpenFile(dev, os.O_RDWR|os.O_SYNC, 0660)
	if err != nil {
		return nil, err
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", dev, err)
	}
	return &Window{f: f, mem: mem}, nil
}

// OpenPhys maps size bytes of physical memory at base through /dev/mem.
func OpenPhys(base uint64, size int) (*Window, error) {
	v, err := pmem.Map(base, size)
	if err != nil {
		return nil, fmt.Errorf("map %#x: %w", base, err)
	}
	return &Window{view: v, mem: v.Bytes()}, nil
}

// Size is the mapped length in bytes.
func (w *Window) Size() int { return len(w.mem) }

// Read32 reads one 32 bit register.
func (w *Window) Read32(off uint32) uint32 {
	_ = w.mem[off+3]
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(&w.mem[off])))
}

// Write32 writes one 32 bit register.
func (w *Window) Write32(off uint32, v uint32) {
	_ = w.mem[off+3]
	atomic.StoreUint32((*uint32)(unsafe.Pointer(&w.mem[off])), v)
}

// Close unmaps the window.
func (w *Window) Close() error {
	if w.view != nil {
		return w.view.Close()
	}
	err := unix.Munmap(w.mem)
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}
