package convert

import (
	"errors"
	"testing"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/types"
)

func TestInLineLanes(t *testing.T) {
	if !InLine(types.Gen2, 0) || InLine(types.Gen2, 5) {
		t.Fatalf("gen2 in-line lanes are 0..4")
	}
	if InLine(types.Gen1, 0) || !InLine(types.Gen1, 8) {
		t.Fatalf("gen1 in-line lanes are 1..8")
	}
}

func TestProgramStartClear(t *testing.T) {
	r := regio.NewRAM()
	l := Lane{Index: 2, InRate: 44100, OutRate: 48000, Command: 1}
	if err := Program(r, types.Gen2, l); err != nil {
		t.Fatalf("program: %v", err)
	}
	if r.Read32(regmap.SrcRoute(2)) != regmap.SrcInPath|regmap.SrcToCommand {
		t.Fatalf("route = %#x", r.Read32(regmap.SrcRoute(2)))
	}
	if r.Read32(regmap.CmdRoute(1)) != 3 {
		t.Fatalf("cmd route = %d", r.Read32(regmap.CmdRoute(1)))
	}
	if r.Read32(regmap.SrcIFSVR(2)) != regmap.EncodeRatio(44100, 48000) {
		t.Fatalf("ratio")
	}
	Start(r, l)
	if r.Read32(regmap.SrcCtrl(2)) != regmap.Start || r.Read32(regmap.CmdCtrl(1)) != regmap.Start {
		t.Fatalf("not started")
	}
	Clear(r, l)
	if len(r.Snapshot()) != 0 {
		t.Fatalf("registers left after clear: %v", r.Snapshot())
	}
}

func TestProgramErrors(t *testing.T) {
	r := regio.NewRAM()
	if err := Program(r, types.Gen2, Lane{Index: 7, InRate: 1, OutRate: 1, Command: -1}); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("not in-line: %v", err)
	}
	if err := Program(r, types.Gen1, Lane{Index: 1, InRate: 48000, OutRate: 48000, Command: 0}); !errors.Is(err, errcode.NotSupported) {
		t.Fatalf("command on gen1: %v", err)
	}
	if len(r.Writes()) != 0 {
		t.Fatalf("failed program wrote registers")
	}
}
