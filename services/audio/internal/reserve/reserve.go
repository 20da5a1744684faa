// Package reserve hands out exclusive leases on numbered hardware resources:
// serial channels, converter and command lanes, and DMA handles.
package reserve

import (
	"strconv"
	"sync"

	"github.com/golang/glog"

	"audiopath-go/errcode"
	"audiopath-go/types"
)

// Class is a family of numbered resources.
type Class uint8

const (
	ClassChannel Class = iota
	ClassConverter
	ClassCommand
	ClassDMA     // memory <-> peripheral handles
	ClassDMAPeri // peripheral <-> peripheral handles
)

func (c Class) String() string {
	switch c {
	case ClassChannel:
		return "ssi"
	case ClassConverter:
		return "src"
	case ClassCommand:
		return "cmd"
	case ClassDMA:
		return "dma"
	case ClassDMAPeri:
		return "dmapp"
	}
	return "class(" + strconv.Itoa(int(c)) + ")"
}

// Range returns the inclusive index bounds of class on gen.
// ok is false when the class does not exist on that generation.
func Range(gen types.Generation, c Class) (lo, hi int, ok bool) {
	switch gen {
	case types.Gen1:
		switch c {
		case ClassChannel, ClassConverter:
			return 0, 8, true
		case ClassDMA:
			return 0, 11, true
		}
	case types.Gen2:
		switch c {
		case ClassChannel, ClassConverter:
			return 0, 9, true
		case ClassCommand:
			return 0, 1, true
		case ClassDMA:
			return 0, 15, true
		case ClassDMAPeri:
			return 0, 28, true
		}
	}
	return 0, 0, false
}

// Lease is an exclusive hold on Lo..Hi (inclusive) of one class.
// The zero Lease holds nothing; releasing it is a no-op.
type Lease struct {
	Class Class
	Lo    int
	Hi    int
	Owner string

	serial uint64
}

// Valid reports whether l came from a successful reservation.
func (l Lease) Valid() bool { return l.serial != 0 }

// Index is the first leased index.
func (l Lease) Index() int { return l.Lo }

// Indices lists every leased index.
func (l Lease) Indices() []int {
	if !l.Valid() {
		return nil
	}
	out := make([]int, 0, l.Hi-l.Lo+1)
	for i := l.Lo; i <= l.Hi; i++ {
		out = append(out, i)
	}
	return out
}

func (l Lease) String() string {
	s := l.Class.String() + strconv.Itoa(l.Lo)
	if l.Hi != l.Lo {
		s += "-" + strconv.Itoa(l.Hi)
	}
	return s
}

type slot struct {
	class Class
	index int
}

type holder struct {
	owner  string
	serial uint64
}

// Table is a lease table for one hardware generation.
type Table struct {
	gen types.Generation

	mu     sync.Mutex
	held   map[slot]holder
	serial uint64
}

// NewTable returns an empty table for gen.
func NewTable(gen types.Generation) *Table {
	return &Table{gen: gen, held: make(map[slot]holder)}
}

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the process-wide table. It is created on the first call,
// with that call's generation, and never torn down.
func Default(gen types.Generation) *Table {
	defaultOnce.Do(func() {
		defaultTable = NewTable(gen)
		glog.V(2).Infof("[reserve] lease table created for %v", gen)
	})
	return defaultTable
}

// Generation is the generation whose ranges the table enforces.
func (t *Table) Generation() types.Generation { return t.gen }

// Reserve leases the first index of class, in range order, for which pred
// holds and that nobody holds. A nil pred accepts every index.
func (t *Table) Reserve(owner string, c Class, pred func(int) bool) (Lease, error) {
	const op = "reserve"
	lo, hi, ok := Range(t.gen, c)
	if !ok {
		return Lease{}, errcode.New(op, errcode.NotSupported, c.String()+" on "+t.gen.String())
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	candidates := 0
	for i := lo; i <= hi; i++ {
		if pred != nil && !pred(i) {
			continue
		}
		candidates++
		if _, taken := t.held[slot{c, i}]; taken {
			continue
		}
		return t.grant(owner, c, i, i), nil
	}
	if candidates == 0 {
		return Lease{}, errcode.New(op, errcode.Exhausted, "no "+c.String()+" matches")
	}
	return Lease{}, errcode.New(op, errcode.Busy, "every matching "+c.String()+" is leased")
}

// ReserveRange leases lo..hi (inclusive) of class, all or nothing.
func (t *Table) ReserveRange(owner string, c Class, lo, hi int) (Lease, error) {
	const op = "reserve.range"
	first, last, ok := Range(t.gen, c)
	if !ok {
		return Lease{}, errcode.New(op, errcode.NotSupported, c.String()+" on "+t.gen.String())
	}
	if lo > hi || lo < first || hi > last {
		return Lease{}, errcode.New(op, errcode.RangeInvalid,
			c.String()+" "+strconv.Itoa(lo)+".."+strconv.Itoa(hi))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for i := lo; i <= hi; i++ {
		if h, taken := t.held[slot{c, i}]; taken {
			return Lease{}, errcode.New(op, errcode.Busy, c.String()+strconv.Itoa(i)+" held by "+h.owner)
		}
	}
	return t.grant(owner, c, lo, hi), nil
}

func (t *Table) grant(owner string, c Class, lo, hi int) Lease {
	t.serial++
	for i := lo; i <= hi; i++ {
		t.held[slot{c, i}] = holder{owner: owner, serial: t.serial}
	}
	l := Lease{Class: c, Lo: lo, Hi: hi, Owner: owner, serial: t.serial}
	glog.V(2).Infof("[reserve] %s -> %s", l, owner)
	return l
}

// Release returns l. Releasing twice, or releasing the zero Lease, does nothing.
func (t *Table) Release(l Lease) {
	if !l.Valid() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := l.Lo; i <= l.Hi; i++ {
		k := slot{l.Class, i}
		if h, ok := t.held[k]; ok && h.serial == l.serial {
			delete(t.held, k)
		}
	}
}

// Holder returns the owner of index i of class, if any.
func (t *Table) Holder(c Class, i int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.held[slot{c, i}]
	return h.owner, ok
}

// Held counts the leased indices of class.
func (t *Table) Held(c Class) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for k := range t.held {
		if k.class == c {
			n++
		}
	}
	return n
}
