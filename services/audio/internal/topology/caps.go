package topology

import (
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/types"
	"audiopath-go/x/mathx"
)

// Cap is a per-channel hardware capability.
type Cap uint8

const (
	CapMultichannel Cap = iota
	CapTDM
	CapTDMExtended
	CapTDMSplit
	CapHighRate // above 96 kHz
)

// MaxChannel is the highest channel index on gen.
func MaxChannel(gen types.Generation) int {
	if gen == types.Gen1 {
		return 8
	}
	return 9
}

// ValidChannel reports whether ch exists on gen.
func ValidChannel(gen types.Generation, ch int) bool {
	return mathx.Between(ch, 0, MaxChannel(gen))
}

// Capable reports whether channel ch supports c on gen.
func Capable(gen types.Generation, ch int, c Cap) bool {
	if !ValidChannel(gen, ch) {
		return false
	}
	switch c {
	case CapMultichannel:
		return ch == 0 || ch == 1 || ch == 2 || ch == 9
	case CapTDM:
		return true
	case CapTDMExtended:
		return gen == types.Gen2 && (ch == 0 || ch == 3 || ch == 4)
	case CapTDMSplit:
		return gen == types.Gen2 && (ch == 0 || ch == 4)
	case CapHighRate:
		switch ch {
		case 0, 1, 2, 3, 7, 9:
			return true
		}
	}
	return false
}

// HighRate is the first rate that needs CapHighRate.
const HighRate = 96001

// ModeVoices reports whether voices is legal for mode spread over lanes channels.
func ModeVoices(m types.OperatingMode, lanes, voices int) bool {
	switch m {
	case types.ModeMono:
		return voices == 1
	case types.ModeStereo:
		return voices == 2
	case types.ModeMultichannel:
		return voices == 2*lanes
	case types.ModeTDM:
		return voices == 6 || voices == 8
	case types.ModeTDMExtended:
		return voices == 16
	case types.ModeTDMSplitMono:
		return voices == 4
	case types.ModeTDMSplitStereo:
		return voices == 8
	}
	return false
}

// Slots is the number of slots per frame in mode.
func Slots(m types.OperatingMode) int {
	switch m {
	case types.ModeTDM, types.ModeTDMSplitMono, types.ModeTDMSplitStereo:
		return 8
	case types.ModeTDMExtended:
		return 16
	}
	return 2
}

// FrameWidth is the frame length in bit clocks for mode at bits per sample.
func FrameWidth(m types.OperatingMode, bits int) int {
	return Slots(m) * regmap.SlotBits(bits)
}

// Sync is how the members of a group are started.
type Sync uint8

const (
	SyncNone   Sync = iota // one channel, started directly
	SyncGroup3             // {0,1,2}
	SyncGroup4             // {0,1,2,9}
	SyncDuplex             // {3,4} or {7,8}, one transmit and one receive
)

func (s Sync) String() string {
	switch s {
	case SyncGroup3:
		return "group3"
	case SyncGroup4:
		return "group4"
	case SyncDuplex:
		return "duplex"
	}
	return "none"
}

// syncBit is the MODE2/CONTROL bit for a synchronized set.
func syncBit(s Sync, chans []int) uint32 {
	switch s {
	case SyncGroup3:
		return regmap.Group3
	case SyncGroup4:
		return regmap.Group4
	case SyncDuplex:
		if chans[0] == 3 {
			return regmap.Duplex34
		}
		return regmap.Duplex78
	}
	return 0
}

// shareBits returns the MODE1 bits that join the pins of set (sorted,
// distinct). ok is false when the hardware cannot share that set.
func shareBits(set []int) (bits uint32, ok bool) {
	switch len(set) {
	case 0, 1:
		return 0, true
	case 2:
		switch [2]int{set[0], set[1]} {
		case [2]int{0, 1}:
			return regmap.Share01, true
		case [2]int{0, 2}:
			return regmap.Share02, true
		case [2]int{0, 9}:
			return regmap.Share09, true
		case [2]int{3, 4}:
			return regmap.Share34, true
		case [2]int{5, 6}:
			return regmap.Share56, true
		case [2]int{7, 8}:
			return regmap.Share78, true
		}
	case 3:
		if set[0] == 0 && set[1] == 1 && set[2] == 2 {
			return regmap.Share01 | regmap.Share02, true
		}
	case 4:
		if set[0] == 0 && set[1] == 1 && set[2] == 2 && set[3] == 9 {
			return regmap.Share01 | regmap.Share02 | regmap.Share09, true
		}
	}
	return 0, false
}
