package regmap

import (
	"testing"

	"audiopath-go/types"
)

func TestChannelRegisterLayout(t *testing.T) {
	if SSICR(0) != 0x41000 || SSISR(1) != 0x41044 || SSIDIV(9) != 0x41264 {
		t.Fatalf("ssi offsets: %#x %#x %#x", SSICR(0), SSISR(1), SSIDIV(9))
	}
	if SSITDR(0)+WindowBase != 0xEC541008 || SSIRDR(0)+WindowBase != 0xEC54100C {
		t.Fatalf("ssi0 data registers outside expected window")
	}
	if BusIFCtrl(4) != 0x40910 || CmdCtrl(1) != 0x01044 || SrcIFSVR(2) != 0x00088 {
		t.Fatalf("scu/ssiu offsets")
	}
}

func TestShareBits(t *testing.T) {
	if ShareBitsOf(0) != Share01|Share02|Share09 {
		t.Fatalf("ch0 share bits = %#x", ShareBitsOf(0))
	}
	if ShareBitsOf(4) != Share34 || ShareBitsOf(8) != Share78 || ShareBitsOf(10) != 0 {
		t.Fatalf("share bits")
	}
}

func TestCREnableDisable(t *testing.T) {
	cr := EncodeCR(Lane{Transmit: true, Master: true, Bits: 24, Voices: 2, Mode: types.ModeStereo})
	if Enabled(cr) || Armed(cr) {
		t.Fatalf("encoded CR must start disabled: %#x", cr)
	}
	if !IsMaster(cr) {
		t.Fatalf("master bits missing")
	}
	a := Arm(cr)
	if !Armed(a) || Enabled(a) {
		t.Fatalf("arm = %#x", a)
	}
	e := Enable(cr)
	if !Armed(e) || !Enabled(e) {
		t.Fatalf("enable = %#x", e)
	}
	if Disable(e) != cr {
		t.Fatalf("disable did not restore format bits")
	}
	if IsMaster(EncodeCR(Lane{Bits: 16, Voices: 2})) {
		t.Fatalf("slave lane reported as master")
	}
}

func TestCRChannelCount(t *testing.T) {
	tdm8 := EncodeCR(Lane{Bits: 32, Voices: 8, Mode: types.ModeTDM})
	tdm6 := EncodeCR(Lane{Bits: 32, Voices: 6, Mode: types.ModeTDM})
	mc := EncodeCR(Lane{Bits: 32, Voices: 6, Mode: types.ModeMultichannel})
	if tdm8>>crCHNLShift&3 != 3 || tdm6>>crCHNLShift&3 != 2 || mc>>crCHNLShift&3 != 0 {
		t.Fatalf("chnl: %#x %#x %#x", tdm8, tdm6, mc)
	}
}

func TestDivRoundTrip(t *testing.T) {
	for _, d := range []int{1, 2, 4, 6, 8, 12, 16} {
		c, ok := EncodeDiv(d)
		if !ok || DecodeDiv(c) != d {
			t.Fatalf("div %d -> %d,%v -> %d", d, c, ok, DecodeDiv(c))
		}
	}
	if _, ok := EncodeDiv(3); ok {
		t.Fatalf("3 is not a channel divisor")
	}
}

func TestWithClkSel(t *testing.T) {
	off, sh := ClkSel(5)
	if off != 0xA0034 || sh != 8 {
		t.Fatalf("ClkSel(5) = %#x,%d", off, sh)
	}
	w := WithClkSel(0xFFFFFFFF, 5, ClkSelB)
	if w != 0xFFFF02FF {
		t.Fatalf("WithClkSel = %#x", w)
	}
}

func TestEncodeRatio(t *testing.T) {
	if EncodeRatio(48000, 48000) != 1<<22 {
		t.Fatalf("unity ratio")
	}
	if EncodeRatio(44100, 0) != 0 {
		t.Fatalf("zero output")
	}
	if EncodeRatio(96000, 48000) != 2<<22 {
		t.Fatalf("2:1 ratio")
	}
}

func TestVersion(t *testing.T) {
	for _, g := range []types.Generation{types.Gen1, types.Gen2} {
		if DecodeVersion(EncodeVersion(g)|0x07) != g {
			t.Fatalf("version round trip %v", g)
		}
	}
	if DecodeVersion(0xDEAD0000) != types.GenAuto {
		t.Fatalf("unknown version must decode to auto")
	}
}

func TestWSRDistinctPerMode(t *testing.T) {
	seen := map[uint32]types.OperatingMode{}
	for m := types.ModeMono; m <= types.ModeTDMSplitStereo; m++ {
		if m == types.ModeMultichannel {
			continue // same framing as stereo
		}
		w := EncodeWSR(m)
		if prev, dup := seen[w]; dup {
			t.Fatalf("%v and %v share WSR %#x", prev, m, w)
		}
		seen[w] = m
	}
}
