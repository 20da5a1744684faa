// Package regmap holds the register offsets and bitfield encodings of the
// audio block. Nothing above this package handles raw register words.
package regmap

import (
	"audiopath-go/types"
	"audiopath-go/x/mathx"
)

// Physical window covering SCU, SSIU, SSI and ADG.
const (
	WindowBase = 0xEC500000
	WindowSize = 0x100000
)

// Register offsets relative to WindowBase.
const (
	// SCU: converter and command lanes.
	scuSrcBase    = 0x00000
	scuSrcStride  = 0x40
	srcRoute      = 0x00 // bit0 in path, bit1 feeds command lane
	srcIFSVR      = 0x08 // input/output ratio, 10.22 fixed point
	srcCtrl       = 0x0C // bit0 start
	scuCmdBase    = 0x01000
	scuCmdStride  = 0x40
	cmdRoute      = 0x00 // source converter index + 1, 0 = none
	cmdCtrl       = 0x04 // bit0 start
	ssiuBase      = 0x40000
	Mode0         = ssiuBase + 0x800 // bit i: channel i independent
	Mode1         = ssiuBase + 0x804 // pin sharing
	Mode2         = ssiuBase + 0x808 // synchronized groups
	Control       = ssiuBase + 0x810 // group start
	busifCtrlBase = ssiuBase + 0x900
	Version       = ssiuBase + 0xFFC
	ssiBase       = 0x41000
	ssiStride     = 0x40
	ssiCR         = 0x00
	ssiSR         = 0x04
	ssiTDR        = 0x08
	ssiRDR        = 0x0C
	ssiWSR        = 0x20
	ssiDIV        = 0x24
	adgBase       = 0xA0000
	BRRA          = adgBase + 0x00
	BRRB          = adgBase + 0x04
	SSICKR        = adgBase + 0x08
	clkSelBase    = adgBase + 0x30
)

func SSICR(ch int) uint32  { return ssiBase + uint32(ch)*ssiStride + ssiCR }
func SSISR(ch int) uint32  { return ssiBase + uint32(ch)*ssiStride + ssiSR }
func SSITDR(ch int) uint32 { return ssiBase + uint32(ch)*ssiStride + ssiTDR }
func SSIRDR(ch int) uint32 { return ssiBase + uint32(ch)*ssiStride + ssiRDR }
func SSIWSR(ch int) uint32 { return ssiBase + uint32(ch)*ssiStride + ssiWSR }
func SSIDIV(ch int) uint32 { return ssiBase + uint32(ch)*ssiStride + ssiDIV }

func BusIFCtrl(ch int) uint32 { return busifCtrlBase + uint32(ch)*4 }

func SrcRoute(i int) uint32 { return scuSrcBase + uint32(i)*scuSrcStride + srcRoute }
func SrcIFSVR(i int) uint32 { return scuSrcBase + uint32(i)*scuSrcStride + srcIFSVR }
func SrcCtrl(i int) uint32  { return scuSrcBase + uint32(i)*scuSrcStride + srcCtrl }
func CmdRoute(i int) uint32 { return scuCmdBase + uint32(i)*scuCmdStride + cmdRoute }
func CmdCtrl(i int) uint32  { return scuCmdBase + uint32(i)*scuCmdStride + cmdCtrl }

// ---- SSIU MODE1: pin sharing ----

const (
	Share01 uint32 = 1 << 0
	Share02 uint32 = 1 << 1
	Share09 uint32 = 1 << 2
	Share34 uint32 = 1 << 8
	Share56 uint32 = 1 << 9
	Share78 uint32 = 1 << 10
)

// ShareBitsOf returns every MODE1 bit whose pair includes channel ch.
func ShareBitsOf(ch int) uint32 {
	switch ch {
	case 0:
		return Share01 | Share02 | Share09
	case 1:
		return Share01
	case 2:
		return Share02
	case 9:
		return Share09
	case 3, 4:
		return Share34
	case 5, 6:
		return Share56
	case 7, 8:
		return Share78
	}
	return 0
}

// ---- SSIU MODE2 / CONTROL: synchronized groups ----

const (
	Group3   uint32 = 1 << 0 // channels 0,1,2
	Group4   uint32 = 1 << 1 // channels 0,1,2,9
	Duplex34 uint32 = 1 << 4
	Duplex78 uint32 = 1 << 5
)

// ---- SSI CR ----

const (
	crEN   uint32 = 1 << 0
	crTRMD uint32 = 1 << 1 // transmit
	crSCKD uint32 = 1 << 2 // bit clock output
	crSWSD uint32 = 1 << 3 // word select output
	crDMEN uint32 = 1 << 28

	crSWLShift  = 16
	crDWLShift  = 19
	crCHNLShift = 22
)

// Lane describes the static per-channel serial format.
type Lane struct {
	Transmit bool
	Master   bool // drives bit clock and word select
	Bits     int  // sample bits: 16, 24, 32
	Voices   int  // voices carried on this lane
	Mode     types.OperatingMode
}

// SlotBits is the slot width used for Bits.
func SlotBits(bits int) int {
	if bits == 16 {
		return 16
	}
	return 32
}

// EncodeCR packs the lane format. EN and DMEN are left clear.
func EncodeCR(l Lane) uint32 {
	var v uint32
	if l.Transmit {
		v |= crTRMD
	}
	if l.Master {
		v |= crSCKD | crSWSD
	}
	switch l.Bits {
	case 16:
		v |= 1 << crDWLShift
	case 24:
		v |= 5 << crDWLShift
	default:
		v |= 6 << crDWLShift
	}
	if SlotBits(l.Bits) == 16 {
		v |= 1 << crSWLShift
	} else {
		v |= 3 << crSWLShift
	}
	var chnl uint32
	switch {
	case l.Voices >= 8:
		chnl = 3
	case l.Voices >= 6:
		chnl = 2
	case l.Voices >= 4:
		chnl = 1
	}
	if l.Mode == types.ModeMultichannel {
		chnl = 0 // each member lane carries one stereo pair
	}
	return v | chnl<<crCHNLShift
}

// Arm enables DMA requests without enabling the serial output.
func Arm(cr uint32) uint32 { return cr | crDMEN }

// Enable turns the lane on.
func Enable(cr uint32) uint32 { return cr | crDMEN | crEN }

// Disable clears both the lane enable and DMA requests.
func Disable(cr uint32) uint32 { return cr &^ (crDMEN | crEN) }

// Enabled reports whether EN is set.
func Enabled(cr uint32) bool { return cr&crEN != 0 }

// Armed reports whether DMEN is set.
func Armed(cr uint32) bool { return cr&crDMEN != 0 }

// IsMaster reports whether the lane drives its clocks.
func IsMaster(cr uint32) bool { return cr&(crSCKD|crSWSD) == crSCKD|crSWSD }

// ---- SSI SR ----

const srIDST uint32 = 1 << 25

// Idle reports the idle indicator in an SR value.
func Idle(sr uint32) bool { return sr&srIDST != 0 }

// IdleBit is the SR idle indicator, for register models.
const IdleBit = srIDST

// ---- SSI WSR ----

const (
	wsrTDM    uint32 = 1 << 0
	wsrMono   uint32 = 1 << 1
	wsrTDMExt uint32 = 1 << 2
	wsrSplit  uint32 = 1 << 3
	wsrCont   uint32 = 1 << 8
)

// EncodeWSR selects the word-select format for mode.
func EncodeWSR(m types.OperatingMode) uint32 {
	switch m {
	case types.ModeMono:
		return wsrCont | wsrMono
	case types.ModeTDM:
		return wsrCont | wsrTDM
	case types.ModeTDMExtended:
		return wsrCont | wsrTDM | wsrTDMExt
	case types.ModeTDMSplitMono:
		return wsrCont | wsrTDM | wsrSplit | wsrMono
	case types.ModeTDMSplitStereo:
		return wsrCont | wsrTDM | wsrSplit
	default:
		return wsrCont
	}
}

// ---- SSI DIV: channel-level (stage 1) divisor ----

// EncodeDiv returns the CKDV code for a stage-1 divisor.
func EncodeDiv(stage1 int) (uint32, bool) {
	switch stage1 {
	case 1:
		return 0, true
	case 2:
		return 1, true
	case 4:
		return 2, true
	case 8:
		return 3, true
	case 16:
		return 4, true
	case 6:
		return 5, true
	case 12:
		return 6, true
	}
	return 0, false
}

// DecodeDiv is the inverse of EncodeDiv.
func DecodeDiv(code uint32) int {
	return [...]int{1, 2, 4, 8, 16, 6, 12, 0}[code&7]
}

// ---- ADG ----

// Clock-source select codes written to CLKSEL byte lanes.
const (
	ClkSelNone uint32 = 0
	ClkSelA    uint32 = 1
	ClkSelB    uint32 = 2
)

// SSICKR enables.
const (
	CkrEnableA uint32 = 1 << 0
	CkrEnableB uint32 = 1 << 1
)

// ClkSel returns the CLKSEL register offset and bit shift for channel ch.
func ClkSel(ch int) (off uint32, shift uint) {
	return clkSelBase + uint32(ch/4)*4, uint(ch%4) * 8
}

// WithClkSel replaces channel ch's byte lane in a CLKSEL word.
func WithClkSel(cur uint32, ch int, code uint32) uint32 {
	_, sh := ClkSel(ch)
	return cur&^(0xFF<<sh) | (code&0xFF)<<sh
}

// ---- SCU ----

const (
	SrcInPath    uint32 = 1 << 0
	SrcToCommand uint32 = 1 << 1
	Start        uint32 = 1 << 0
)

// EncodeRatio packs in/out as the converter's 10.22 fixed-point ratio,
// rounded to nearest. A zero output rate encodes as 0.
func EncodeRatio(in, out uint32) uint32 {
	return uint32(mathx.RoundDiv(uint64(in)<<22, uint64(out)))
}

// ---- VERSION ----

// DecodeVersion maps the SSIU version word to a generation; GenAuto if unknown.
func DecodeVersion(v uint32) types.Generation {
	switch (v >> 8) & 0xFF {
	case 0x10:
		return types.Gen1
	case 0x20:
		return types.Gen2
	}
	return types.GenAuto
}

// EncodeVersion is the version word a generation reports.
func EncodeVersion(g types.Generation) uint32 {
	switch g {
	case types.Gen1:
		return 0x10 << 8
	case types.Gen2:
		return 0x20 << 8
	}
	return 0
}
