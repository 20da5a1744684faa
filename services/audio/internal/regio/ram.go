package regio

import "sync"

// Access is one recorded register write.
type Access struct {
	Off uint32
	Val uint32
}

// RAM is an in-memory register space. Unwritten registers read as zero.
// OnWrite, if set, runs after every Write32 with the lock released, so it
// may Poke other registers to model hardware side effects.
type RAM struct {
	mu     sync.Mutex
	words  map[uint32]uint32
	writes []Access

	OnWrite func(r *RAM, off, v uint32)
}

func NewRAM() *RAM {
	return &RAM{words: make(map[uint32]uint32)}
}

func (r *RAM) Read32(off uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.words[off]
}

func (r *RAM) Write32(off uint32, v uint32) {
	r.mu.Lock()
	r.store(off, v)
	r.writes = append(r.writes, Access{Off: off, Val: v})
	hook := r.OnWrite
	r.mu.Unlock()
	if hook != nil {
		hook(r, off, v)
	}
}

// Poke stores v without recording it or running OnWrite.
func (r *RAM) Poke(off, v uint32) {
	r.mu.Lock()
	r.store(off, v)
	r.mu.Unlock()
}

func (r *RAM) store(off, v uint32) {
	if v == 0 {
		delete(r.words, off)
		return
	}
	r.words[off] = v
}

// Writes returns a copy of the write log.
func (r *RAM) Writes() []Access {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Access(nil), r.writes...)
}

// WritesTo returns the logged values written to off, in order.
func (r *RAM) WritesTo(off uint32) []uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint32
	for _, a := range r.writes {
		if a.Off == off {
			out = append(out, a.Val)
		}
	}
	return out
}

// ResetLog clears the write log.
func (r *RAM) ResetLog() {
	r.mu.Lock()
	r.writes = nil
	r.mu.Unlock()
}

// Snapshot copies the non-zero register contents.
func (r *RAM) Snapshot() map[uint32]uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := make(map[uint32]uint32, len(r.words))
	for k, v := range r.words {
		m[k] = v
	}
	return m
}
