// Package regio is the register-access capability: 32-bit reads and writes
// at offsets inside one mapped window of the audio block.
package regio

import "github.com/golang/glog"

// Space is the only path to hardware registers.
type Space interface {
	Read32(off uint32) uint32
	Write32(off uint32, v uint32)
}

// Update performs a read-modify-write of the bits in mask.
func Update(s Space, off, mask, val uint32) {
	s.Write32(off, s.Read32(off)&^mask|val&mask)
}

// Trace wraps s so every access is logged at glog verbosity 3.
func Trace(s Space) Space { return tracer{s} }

type tracer struct{ s Space }

func (t tracer) Read32(off uint32) uint32 {
	v := t.s.Read32(off)
	glog.V(3).Infof("[regio] rd %#06x -> %#08x", off, v)
	return v
}

func (t tracer) Write32(off uint32, v uint32) {
	glog.V(3).Infof("[regio] wr %#06x <- %#08x", off, v)
	t.s.Write32(off, v)
}
