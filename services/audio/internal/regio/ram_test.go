package regio

import (
	"reflect"
	"testing"
)

func TestRAMReadWriteAndLog(t *testing.T) {
	r := NewRAM()
	r.Write32(0x10, 0xAA)
	r.Write32(0x14, 0)
	r.Write32(0x10, 0xBB)

	if got := r.Read32(0x10); got != 0xBB {
		t.Fatalf("Read32 = %#x", got)
	}
	if got := r.WritesTo(0x10); !reflect.DeepEqual(got, []uint32{0xAA, 0xBB}) {
		t.Fatalf("WritesTo = %v", got)
	}
	if n := len(r.Writes()); n != 3 {
		t.Fatalf("log len = %d", n)
	}
	// Zero writes leave no entry in the snapshot.
	if snap := r.Snapshot(); len(snap) != 1 || snap[0x10] != 0xBB {
		t.Fatalf("snapshot = %v", snap)
	}
	r.ResetLog()
	if len(r.Writes()) != 0 {
		t.Fatalf("log not cleared")
	}
}

func TestRAMHookMayPoke(t *testing.T) {
	r := NewRAM()
	r.OnWrite = func(r *RAM, off, v uint32) {
		if off == 0x0 && v&1 == 0 {
			r.Poke(0x4, 1)
		}
	}
	r.Write32(0x0, 0)
	if r.Read32(0x4) != 1 {
		t.Fatalf("hook side effect missing")
	}
	if len(r.Writes()) != 1 {
		t.Fatalf("Poke must not be logged")
	}
}

func TestUpdate(t *testing.T) {
	r := NewRAM()
	r.Poke(0x8, 0xF0F0)
	Update(r, 0x8, 0x00FF, 0x0012)
	if got := r.Read32(0x8); got != 0xF012 {
		t.Fatalf("Update = %#x", got)
	}
	var s Space = Trace(r)
	s.Write32(0xC, 7)
	if s.Read32(0xC) != 7 {
		t.Fatalf("trace passthrough")
	}
}
