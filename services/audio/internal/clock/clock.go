// Package clock selects a master clock and two cascaded divisors for a
// target sample rate. It never approximates: every supported rate divides
// out exactly, everything else is UnsupportedRate.
package clock

import (
	"strconv"

	"periph.io/x/conn/v3/physic"

	"audiopath-go/errcode"
	"audiopath-go/types"
)

// Source is one of the two fixed master clocks.
type Source uint8

const (
	ClockA Source = iota // 44.1 kHz family
	ClockB               // 48 kHz family
)

func (s Source) String() string {
	if s == ClockB {
		return "clkb"
	}
	return "clka"
}

// Plan is a clock source plus the channel-level (Stage1) and clock-domain
// (Stage2) divisors.
type Plan struct {
	Source Source
	Stage1 int
	Stage2 int
}

func (p Plan) String() string {
	return p.Source.String() + "/" + strconv.Itoa(p.Stage1) + "/" + strconv.Itoa(p.Stage2)
}

// Rate is the sample rate the plan produces on gen for frameWidth bits per frame.
func (p Plan) Rate(gen types.Generation, frameWidth int) physic.Frequency {
	d := int64(p.Stage1) * int64(p.Stage2) * int64(frameWidth)
	if d == 0 {
		return 0
	}
	return Frequency(gen, p.Source) / physic.Frequency(d)
}

// Frequency returns the master clock frequency of src on gen.
func Frequency(gen types.Generation, src Source) physic.Frequency {
	switch gen {
	case types.Gen1:
		if src == ClockB {
			return 12288 * physic.KiloHertz
		}
		return 11289600 * physic.Hertz
	case types.Gen2:
		if src == ClockB {
			return 24576 * physic.KiloHertz
		}
		return 22579200 * physic.Hertz
	}
	return 0
}

// NominalFrameWidth is the frame width the rate tables are written for.
const NominalFrameWidth = 64

// FrameWidths lists the legal frame widths in bits.
var FrameWidths = []int{32, 64, 128, 256, 512}

var (
	stage1All  = []int{16, 12, 8, 6, 4, 2, 1}
	stage1Long = []int{8, 4, 2, 1}
)

// Stage1Set returns the channel-level divisors tried for frameWidth,
// largest first. Frames of 256 bits and more only take powers of two.
// The wide-frame set is a chosen reading of which divisors suit long
// frames, not a documented limit of the divider.
func Stage1Set(frameWidth int) []int {
	if frameWidth >= 256 {
		return stage1Long
	}
	return stage1All
}

// MaxStage2 is the largest clock-domain divisor on gen.
func MaxStage2(gen types.Generation) int {
	if gen == types.Gen1 {
		return 256
	}
	return 1024
}

// Solve returns the plan for rate on gen with frameWidth bits per frame.
func Solve(rate uint32, gen types.Generation, frameWidth int) (Plan, error) {
	const op = "clock.solve"
	if !validFrameWidth(frameWidth) {
		return Plan{}, errcode.New(op, errcode.InvalidArgument, "frame width "+strconv.Itoa(frameWidth))
	}
	if gen != types.Gen1 && gen != types.Gen2 {
		return Plan{}, errcode.New(op, errcode.NotSupported, "generation "+gen.String())
	}
	e, ok := lookup(gen, rate)
	if !ok {
		return Plan{}, errcode.New(op, errcode.UnsupportedRate, strconv.FormatUint(uint64(rate), 10)+" Hz on "+gen.String())
	}
	if frameWidth == NominalFrameWidth {
		return e, nil
	}

	// Total divisor is exact by construction of the tables.
	total := int64(Frequency(gen, e.Source) / physic.Hertz / physic.Frequency(rate))
	if total%int64(frameWidth) != 0 {
		return Plan{}, errcode.New(op, errcode.UnsupportedRate, "frame width does not divide clock")
	}
	prod := int(total / int64(frameWidth))
	legal := Stage1Set(frameWidth)

	// Keep the table's clock-domain divisor when possible so two widths
	// at the same rate share the domain setting.
	if prod%e.Stage2 == 0 && contains(legal, prod/e.Stage2) {
		return Plan{Source: e.Source, Stage1: prod / e.Stage2, Stage2: e.Stage2}, nil
	}
	for _, s1 := range legal {
		if prod%s1 == 0 && prod/s1 <= MaxStage2(gen) {
			return Plan{Source: e.Source, Stage1: s1, Stage2: prod / s1}, nil
		}
	}
	return Plan{}, errcode.New(op, errcode.UnsupportedRate, "no legal divisor pair")
}

func validFrameWidth(w int) bool {
	return contains(FrameWidths, w)
}

func contains(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}
