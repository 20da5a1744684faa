package dma

import (
	"errors"
	"testing"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/internal/route"
)

func TestHostResidue(t *testing.T) {
	h := NewHost()
	d, err := route.MemToPeripheral(0x40000000, route.Channel(0))
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if err := h.Setup(3, Transfer{Route: d, Mode: MemToDev, Bytes: 4096, Period: 1024}); err != nil {
		t.Fatalf("setup: %v", err)
	}
	h.Advance(3, 100) // not running yet
	if h.BytesRemaining(3) != 4096 {
		t.Fatalf("residue moved before start")
	}
	_ = h.Start(3)
	h.Advance(3, 4096+1000)
	if got := h.BytesRemaining(3); got != 3096 {
		t.Fatalf("residue = %d", got)
	}
	_ = h.Stop(3)
	if h.Running(3) {
		t.Fatalf("still running")
	}
	h.Clear(3)
	if h.BytesRemaining(3) != 0 {
		t.Fatalf("cleared channel has residue")
	}
	if h.Count("setup", 3) != 1 || h.Count("clear", 3) != 1 {
		t.Fatalf("events = %v", h.Events())
	}
}

func TestHostErrors(t *testing.T) {
	h := NewHost()
	if err := h.Start(1); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("start without setup: %v", err)
	}
	if err := h.Setup(1, Transfer{Mode: MemToDev}); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("empty buffer: %v", err)
	}
	if err := h.Setup(1, Transfer{Mode: DevToDev}); err != nil {
		t.Fatalf("dev->dev needs no buffer: %v", err)
	}
	h.FailSetup(2, errcode.Busy)
	if err := h.Setup(2, Transfer{Mode: DevToDev}); !errors.Is(err, errcode.Busy) {
		t.Fatalf("injected failure: %v", err)
	}
	if err := h.Setup(2, Transfer{Mode: DevToDev}); err != nil {
		t.Fatalf("failure must fire once: %v", err)
	}
}
