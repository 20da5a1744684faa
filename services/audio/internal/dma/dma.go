// Package dma is the transfer-engine capability. The audio core only computes
// {src, dst, request id} triples; moving data is the engine's job.
package dma

import (
	"strconv"
	"sync"

	"github.com/golang/glog"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/internal/route"
)

// Mode is the transfer direction of one engine channel.
type Mode uint8

const (
	MemToDev Mode = iota
	DevToMem
	DevToDev
)

func (m Mode) String() string {
	switch m {
	case DevToMem:
		return "dev->mem"
	case DevToDev:
		return "dev->dev"
	}
	return "mem->dev"
}

// Transfer is one channel setup. Memory transfers run cyclically over
// Bytes, raising a period event every Period bytes.
type Transfer struct {
	Route  route.Descriptor
	Mode   Mode
	Bytes  uint32
	Period uint32
}

// Engine drives numbered DMA channels. Handles come from the reservation table.
type Engine interface {
	Setup(ch int, t Transfer) error
	Start(ch int) error
	Stop(ch int) error
	Clear(ch int)
	// BytesRemaining is the residue of the current cycle.
	BytesRemaining(ch int) uint32
}

// Host is an Engine that records setups and lets callers move the residue.
// It backs hosts without a DMA controller and the tests.
type Host struct {
	mu   sync.Mutex
	chs  map[int]*hostChan
	log  []Event
	fail map[int]error
}

type hostChan struct {
	t       Transfer
	running bool
	done    uint32
}

// Event is one recorded engine call.
type Event struct {
	Op string // setup, start, stop, clear
	Ch int
	T  Transfer
}

func NewHost() *Host {
	return &Host{chs: make(map[int]*hostChan), fail: make(map[int]error)}
}

// FailSetup makes the next Setup of ch return err.
func (h *Host) FailSetup(ch int, err error) {
	h.mu.Lock()
	h.fail[ch] = err
	h.mu.Unlock()
}

func (h *Host) Setup(ch int, t Transfer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.fail[ch]; err != nil {
		delete(h.fail, ch)
		return err
	}
	if t.Mode != DevToDev && t.Bytes == 0 {
		return errcode.New("dma.setup", errcode.InvalidArgument, "empty buffer on channel "+strconv.Itoa(ch))
	}
	h.chs[ch] = &hostChan{t: t}
	h.log = append(h.log, Event{Op: "setup", Ch: ch, T: t})
	glog.V(2).Infof("[dma] ch%d %v %#x -> %#x id=%#x", ch, t.Mode, t.Route.Src, t.Route.Dst, t.Route.RequestID)
	return nil
}

func (h *Host) Start(ch int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.chs[ch]
	if c == nil {
		return errcode.New("dma.start", errcode.InvalidArgument, "channel "+strconv.Itoa(ch)+" not set up")
	}
	c.running = true
	h.log = append(h.log, Event{Op: "start", Ch: ch})
	return nil
}

func (h *Host) Stop(ch int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c := h.chs[ch]; c != nil {
		c.running = false
	}
	h.log = append(h.log, Event{Op: "stop", Ch: ch})
	return nil
}

func (h *Host) Clear(ch int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.chs, ch)
	h.log = append(h.log, Event{Op: "clear", Ch: ch})
}

func (h *Host) BytesRemaining(ch int) uint32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.chs[ch]
	if c == nil || c.t.Bytes == 0 {
		return 0
	}
	return c.t.Bytes - c.done%c.t.Bytes
}

// Advance pretends n bytes were transferred on a running channel.
func (h *Host) Advance(ch int, n uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c := h.chs[ch]; c != nil && c.running {
		c.done += n
	}
}

// Running reports whether ch is started.
func (h *Host) Running(ch int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.chs[ch]
	return c != nil && c.running
}

// Events returns a copy of the call log.
func (h *Host) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Event(nil), h.log...)
}

// Count returns how many calls of op were made on ch.
func (h *Host) Count(op string, ch int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.log {
		if e.Op == op && e.Ch == ch {
			n++
		}
	}
	return n
}
