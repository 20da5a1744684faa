// Package convert programs the sample-rate converter lanes and the command
// (mix) lanes that can follow them. The conversion itself is done by the
// hardware; only routing, ratio and start bits are written here.
package convert

import (
	"strconv"

	"github.com/golang/glog"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/types"
)

// InLine reports whether converter lane i sits in the direct memory path.
func InLine(gen types.Generation, i int) bool {
	switch gen {
	case types.Gen1:
		return i >= 1 && i <= 8
	case types.Gen2:
		return i >= 0 && i <= 4
	}
	return false
}

// HighRate reports whether converter lane i accepts rates above 96 kHz.
func HighRate(gen types.Generation, i int) bool {
	return gen == types.Gen2 && (i == 0 || i == 1)
}

// Lane is one programmed converter, optionally feeding a command lane.
type Lane struct {
	Index   int
	InRate  uint32
	OutRate uint32
	Command int // -1 when the output goes straight to the channel or memory
}

// Program writes routing and ratio. Nothing is started.
func Program(regs regio.Space, gen types.Generation, l Lane) error {
	const op = "convert.program"
	if !InLine(gen, l.Index) {
		return errcode.New(op, errcode.InvalidArgument, "converter "+strconv.Itoa(l.Index)+" is not in-line")
	}
	if l.InRate == 0 || l.OutRate == 0 {
		return errcode.New(op, errcode.InvalidArgument, "zero rate")
	}
	if l.Command >= 0 && gen != types.Gen2 {
		return errcode.New(op, errcode.NotSupported, "command lanes on "+gen.String())
	}
	route := regmap.SrcInPath
	if l.Command >= 0 {
		route |= regmap.SrcToCommand
		regs.Write32(regmap.CmdRoute(l.Command), uint32(l.Index+1))
	}
	regs.Write32(regmap.SrcRoute(l.Index), route)
	regs.Write32(regmap.SrcIFSVR(l.Index), regmap.EncodeRatio(l.InRate, l.OutRate))
	glog.V(2).Infof("[convert] src%d %d->%d cmd=%d", l.Index, l.InRate, l.OutRate, l.Command)
	return nil
}

// Start runs the converter, then its command lane.
func Start(regs regio.Space, l Lane) {
	regs.Write32(regmap.SrcCtrl(l.Index), regmap.Start)
	if l.Command >= 0 {
		regs.Write32(regmap.CmdCtrl(l.Command), regmap.Start)
	}
}

// Stop halts the command lane, then the converter.
func Stop(regs regio.Space, l Lane) {
	if l.Command >= 0 {
		regs.Write32(regmap.CmdCtrl(l.Command), 0)
	}
	regs.Write32(regmap.SrcCtrl(l.Index), 0)
}

// Clear stops l and removes its routing.
func Clear(regs regio.Space, l Lane) {
	Stop(regs, l)
	if l.Command >= 0 {
		regs.Write32(regmap.CmdRoute(l.Command), 0)
	}
	regs.Write32(regmap.SrcRoute(l.Index), 0)
	regs.Write32(regmap.SrcIFSVR(l.Index), 0)
}
