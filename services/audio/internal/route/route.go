// Package route resolves logical DMA endpoints to physical addresses and
// request identifiers. It is address arithmetic only: no hardware access,
// identical inputs always give identical outputs.
package route

import (
	"strconv"

	"audiopath-go/errcode"
)

// Family enumerates the peripheral endpoint families.
type Family uint8

const (
	FamChannel           Family = iota // direct serial lane data register
	FamChannelBus                      // serial lane through a bus-interface sub-lane
	FamConverter                       // sample-rate converter lane
	FamCommand                         // mixer / command lane (output only)
	FamTransport                       // transport lane
	FamContentProtection               // content-protection lane
)

func (f Family) String() string {
	switch f {
	case FamChannel:
		return "ssi"
	case FamChannelBus:
		return "ssiu"
	case FamConverter:
		return "src"
	case FamCommand:
		return "cmd"
	case FamTransport:
		return "transport"
	case FamContentProtection:
		return "dtcp"
	}
	return "family(" + strconv.Itoa(int(f)) + ")"
}

// ID names one peripheral endpoint. Sub is only meaningful for FamChannelBus.
type ID struct {
	Family Family
	Index  int
	Sub    int
}

func Channel(i int) ID           { return ID{Family: FamChannel, Index: i} }
func ChannelBus(i, sub int) ID   { return ID{Family: FamChannelBus, Index: i, Sub: sub} }
func Converter(i int) ID         { return ID{Family: FamConverter, Index: i} }
func Command(i int) ID           { return ID{Family: FamCommand, Index: i} }
func Transport(i int) ID         { return ID{Family: FamTransport, Index: i} }
func ContentProtection(i int) ID { return ID{Family: FamContentProtection, Index: i} }
func (id ID) String() string {
	s := id.Family.String() + strconv.Itoa(id.Index)
	if id.Family == FamChannelBus {
		s += "." + strconv.Itoa(id.Sub)
	}
	return s
}

// Direction selects one of a lane's two data windows. ToMemory is the
// input window: a serial channel's transmit register, a converter's input.
// FromMemory is the output window: the receive register, a converter's
// output. Command lanes only have an output window.
type Direction uint8

const (
	ToMemory Direction = iota
	FromMemory
)

// Endpoint is a resolved peripheral side of a transfer.
type Endpoint struct {
	Address   uint32
	RequestID uint8
}

// Descriptor is one DMA setup triple.
type Descriptor struct {
	Src       uint32
	Dst       uint32
	RequestID uint32
}

// Resolve maps id and dir to the peripheral address and DMA request id.
func Resolve(id ID, dir Direction) (Endpoint, error) {
	const op = "route.resolve"
	if !enabled(id.Family) {
		return Endpoint{}, errcode.New(op, errcode.Unroutable, id.Family.String()+" disabled in this build")
	}
	if id.Index < 0 || id.Index >= lanes(id.Family) {
		return Endpoint{}, errcode.New(op, errcode.Unroutable, "no lane "+id.String())
	}
	if id.Family == FamChannelBus {
		if id.Sub < 0 || id.Sub >= busSubLanes {
			return Endpoint{}, errcode.New(op, errcode.Unroutable, "no sub-lane "+id.String())
		}
	} else if id.Sub != 0 {
		return Endpoint{}, errcode.New(op, errcode.Unroutable, "sub-lane on "+id.Family.String())
	}

	var ep Endpoint
	switch id.Family {
	case FamChannel:
		if dir == ToMemory {
			ep = Endpoint{ssiBase + ssiTx + ssiStride*uint32(id.Index), ssiTxRID[id.Index]}
		} else {
			ep = Endpoint{ssiBase + ssiRx + ssiStride*uint32(id.Index), ssiRxRID[id.Index]}
		}
	case FamChannelBus:
		off := busStride*uint32(id.Index) + busSubStride*uint32(id.Sub)
		if dir == ToMemory {
			ep = Endpoint{busInBase + off, busInRID[id.Index][id.Sub]}
		} else {
			ep = Endpoint{busOutBase + off, busOutRID[id.Index][id.Sub]}
		}
	case FamConverter:
		if dir == ToMemory {
			ep = Endpoint{srcInBase + srcStride*uint32(id.Index), srcInRID[id.Index]}
		} else {
			ep = Endpoint{srcOutBase + srcStride*uint32(id.Index), srcOutRID[id.Index]}
		}
	case FamCommand:
		if dir == ToMemory {
			return Endpoint{}, errcode.New(op, errcode.Unroutable, id.String()+" has no input")
		}
		ep = Endpoint{cmdOutBase + cmdStride*uint32(id.Index), cmdOutRID[id.Index]}
	case FamTransport:
		if dir == ToMemory {
			ep = Endpoint{trBase + trTx + trStride*uint32(id.Index), trTxRID[id.Index]}
		} else {
			ep = Endpoint{trBase + trRx + trStride*uint32(id.Index), trRxRID[id.Index]}
		}
	case FamContentProtection:
		if dir == ToMemory {
			ep = Endpoint{cpBase + cpTx + cpStride*uint32(id.Index), cpTxRID[id.Index]}
		} else {
			ep = Endpoint{cpBase + cpRx + cpStride*uint32(id.Index), cpRxRID[id.Index]}
		}
	default:
		return Endpoint{}, errcode.New(op, errcode.Unroutable, id.Family.String())
	}
	if ep.RequestID == 0 {
		// Request id 0 is reserved; a zero table entry marks a missing lane.
		return Endpoint{}, errcode.New(op, errcode.Unroutable, "no request line for "+id.String())
	}
	return ep, nil
}

// MemToPeripheral builds the descriptor for a playback-style transfer.
func MemToPeripheral(buf uint32, dst ID) (Descriptor, error) {
	ep, err := Resolve(dst, ToMemory)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Src: buf, Dst: ep.Address, RequestID: uint32(ep.RequestID)}, nil
}

// PeripheralToMem builds the descriptor for a capture-style transfer.
func PeripheralToMem(src ID, buf uint32) (Descriptor, error) {
	ep, err := Resolve(src, FromMemory)
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Src: ep.Address, Dst: buf, RequestID: uint32(ep.RequestID)}, nil
}

// ResolvePair builds a peripheral-to-peripheral descriptor. The request id
// carries both route-select codes: src<<24 | dst<<16.
func ResolvePair(src, dst ID) (Descriptor, error) {
	const op = "route.pair"
	if samePhysicalLane(src, dst) {
		return Descriptor{}, errcode.New(op, errcode.InvalidCombination, src.String()+" -> "+dst.String())
	}
	s, err := Resolve(src, FromMemory)
	if err != nil {
		return Descriptor{}, errcode.Wrap(op, err)
	}
	d, err := Resolve(dst, ToMemory)
	if err != nil {
		return Descriptor{}, errcode.Wrap(op, err)
	}
	sc, dc := routeCode(src), routeCode(dst)
	return Descriptor{
		Src:       s.Address,
		Dst:       d.Address,
		RequestID: uint32(sc)<<24 | uint32(dc)<<16,
	}, nil
}

// samePhysicalLane treats a serial lane and its bus-interface sub-lanes as one lane.
func samePhysicalLane(a, b ID) bool {
	fa, fb := a.Family, b.Family
	if fa == FamChannelBus {
		fa = FamChannel
	}
	if fb == FamChannelBus {
		fb = FamChannel
	}
	return fa == fb && a.Index == b.Index
}

func routeCode(id ID) uint8 {
	switch id.Family {
	case FamChannel:
		return uint8(id.Index)
	case FamChannelBus:
		return uint8(id.Index) | uint8(id.Sub)<<4
	case FamConverter:
		return 0x40 + uint8(id.Index)
	case FamCommand:
		return 0x50 + uint8(id.Index)
	case FamTransport:
		return 0x60 + uint8(id.Index)
	case FamContentProtection:
		return 0x70 + uint8(id.Index)
	}
	return 0
}

// Window returns the address range [lo, hi) a family may resolve into.
func Window(f Family) (lo, hi uint32) {
	switch f {
	case FamChannel:
		return ssiBase, ssiBase + ssiStride*ssiLanes
	case FamChannelBus:
		return busInBase, busOutBase + busStride*ssiLanes
	case FamConverter:
		return srcInBase, srcOutBase + srcStride*srcLanes
	case FamCommand:
		return cmdOutBase, cmdOutBase + cmdStride*cmdLanes
	case FamTransport:
		return trBase, trBase + trStride*trLanes
	case FamContentProtection:
		return cpBase, cpBase + cpStride*cpLanes
	}
	return 0, 0
}

func lanes(f Family) int {
	switch f {
	case FamChannel, FamChannelBus:
		return ssiLanes
	case FamConverter:
		return srcLanes
	case FamCommand:
		return cmdLanes
	case FamTransport:
		return trLanes
	case FamContentProtection:
		return cpLanes
	}
	return 0
}

func enabled(f Family) bool {
	switch f {
	case FamTransport:
		return transportEnabled
	case FamContentProtection:
		return contentProtectionEnabled
	}
	return true
}
