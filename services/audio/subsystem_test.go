package audio

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"audiopath-go/bus"
	"audiopath-go/errcode"
	"audiopath-go/services/audio/config"
	"audiopath-go/services/audio/internal/clock"
	"audiopath-go/services/audio/internal/dma"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/services/audio/internal/reserve"
	"audiopath-go/services/audio/internal/route"
	"audiopath-go/services/audio/internal/sim"
	"audiopath-go/types"
)

// countingSpace counts status register reads on top of the simulator.
type countingSpace struct {
	*sim.Block
	srReads atomic.Int32
}

func (c *countingSpace) Read32(off uint32) uint32 {
	for ch := 0; ch < 10; ch++ {
		if off == regmap.SSISR(ch) {
			c.srReads.Add(1)
		}
	}
	return c.Block.Read32(off)
}

type fixture struct {
	s     *Subsystem
	blk   *sim.Block
	regs  *countingSpace
	host  *dma.Host
	table *reserve.Table
	bus   *bus.Bus
}

func newFixture(t *testing.T, gen types.Generation, opts string) *fixture {
	t.Helper()
	cfg, err := config.Parse(opts)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	blk := sim.New(gen)
	f := &fixture{
		blk:   blk,
		regs:  &countingSpace{Block: blk},
		host:  dma.NewHost(),
		table: reserve.NewTable(gen),
		bus:   bus.NewBus(8),
	}
	f.s, err = New(Options{
		Config:      cfg,
		Regs:        f.regs,
		DMA:         f.host,
		Table:       f.table,
		Bus:         f.bus.NewConnection("audio"),
		IdleRetries: 3,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return f
}

func params(rate uint32) types.StreamParams {
	return types.StreamParams{Rate: rate, BufferAddr: 0x48000000, BufferBytes: 4096, PeriodBytes: 1024}
}

func (f *fixture) level(t *testing.T, d types.Direction) types.StreamLevel {
	t.Helper()
	m, ok := f.bus.Retained(StateTopic(d))
	if !ok {
		t.Fatalf("no retained state for %v", d)
	}
	return m.Payload.(types.StreamState).Level
}

func TestPlaybackStereoEndToEnd(t *testing.T) {
	f := newFixture(t, types.Gen2, "") // generation from VERSION
	if f.s.Generation() != types.Gen2 {
		t.Fatalf("generation = %v", f.s.Generation())
	}
	initial := f.blk.Snapshot()
	if lvl := f.level(t, types.Playback); lvl != types.LevelIdle {
		t.Fatalf("initial level %v", lvl)
	}

	if err := f.s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if who, ok := f.table.Holder(reserve.ClassChannel, 0); !ok || who != "audio/playback" {
		t.Fatalf("channel 0 holder = %q, %v", who, ok)
	}
	if p, rate := f.s.ClockPlan(); rate != 48000 || p != (clock.Plan{Source: clock.ClockB, Stage1: 8, Stage2: 1}) {
		t.Fatalf("clock = %v at %d", p, rate)
	}
	evs := f.host.Events()
	if len(evs) != 1 || evs[0].Op != "setup" {
		t.Fatalf("dma events = %+v", evs)
	}
	want, _ := route.Resolve(route.Channel(0), route.ToMemory)
	if tr := evs[0].T; tr.Mode != dma.MemToDev || tr.Route.Dst != want.Address || tr.Route.Dst != 0xEC541008 || tr.Route.Src != 0x48000000 {
		t.Fatalf("transfer = %+v", tr)
	}
	if f.level(t, types.Playback) != types.LevelAcquired {
		t.Fatalf("level after acquire = %v", f.level(t, types.Playback))
	}

	if err := f.s.Prepare(types.Playback); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if n := f.host.Count("setup", evs[0].Ch); n != 2 {
		t.Fatalf("prepare must re-issue setup, got %d", n)
	}
	if err := f.s.Trigger(types.Playback, types.TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !regmap.Enabled(f.blk.Read32(regmap.SSICR(0))) || f.level(t, types.Playback) != types.LevelRunning {
		t.Fatalf("channel 0 not running")
	}

	f.host.Advance(evs[0].Ch, 80)
	if pos, err := f.s.Pointer(types.Playback); err != nil || pos != 10 {
		t.Fatalf("pointer = %d, %v", pos, err)
	}

	if err := f.s.Trigger(types.Playback, types.TriggerStop); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := f.s.Release(types.Playback); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := f.s.Release(types.Playback); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if f.table.Held(reserve.ClassChannel) != 0 || f.table.Held(reserve.ClassDMA) != 0 {
		t.Fatalf("leases left after release")
	}
	if got := f.blk.Snapshot(); !reflect.DeepEqual(got, initial) {
		t.Fatalf("registers after release:\n got %v\nwant %v", got, initial)
	}
	if f.level(t, types.Playback) != types.LevelIdle {
		t.Fatalf("level after release = %v", f.level(t, types.Playback))
	}
}

func TestGroupedPlaybackStartsTogether(t *testing.T) {
	f := newFixture(t, types.Gen2, "gen=gen2 play.ssi=0-2 play.mode=multichannel play.voices=6 play.bits=32")
	p := params(48000)
	p.Voices, p.Bits = 6, 32
	p.BufferBytes = 6 * 4 * 100
	if err := f.s.Acquire(types.Playback, p); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got := f.s.Channels(types.Playback); !reflect.DeepEqual(got, []int{0, 1, 2}) {
		t.Fatalf("channels = %v", got)
	}

	f.blk.ResetLog()
	if err := f.s.Trigger(types.Playback, types.TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	for ch := 0; ch < 3; ch++ {
		w := f.blk.WritesTo(regmap.SSICR(ch))
		if len(w) != 1 || !regmap.Armed(w[0]) || regmap.Enabled(w[0]) {
			t.Fatalf("ch%d CR writes %#x: want one arm", ch, w)
		}
	}
	if w := f.blk.WritesTo(regmap.Control); len(w) != 1 || w[0]&regmap.Group3 == 0 {
		t.Fatalf("CONTROL writes %#x", w)
	}

	f.blk.ResetLog()
	f.regs.srReads.Store(0)
	if err := f.s.Trigger(types.Playback, types.TriggerStop); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if w := f.blk.WritesTo(regmap.Control); len(w) != 1 || w[0] != 0 {
		t.Fatalf("CONTROL writes on stop %#x", w)
	}
	for ch := 0; ch < 3; ch++ {
		if w := f.blk.WritesTo(regmap.SSICR(ch)); len(w) != 1 || regmap.Armed(w[0]) {
			t.Fatalf("ch%d CR writes on stop %#x", ch, w)
		}
	}
	if n := f.regs.srReads.Load(); n < 3 {
		t.Fatalf("idle wait read SR %d times", n)
	}
}

func TestFailedAcquireRollsBack(t *testing.T) {
	f := newFixture(t, types.Gen1, "gen=gen1 play.src=1")
	before := f.blk.Snapshot()
	err := f.s.Acquire(types.Playback, params(48000))
	if !errors.Is(err, errcode.NotSupported) {
		t.Fatalf("want NotSupported, got %v", err)
	}
	for _, c := range []reserve.Class{reserve.ClassChannel, reserve.ClassDMA, reserve.ClassConverter} {
		if n := f.table.Held(c); n != 0 {
			t.Fatalf("%v: %d leases left", c, n)
		}
	}
	if !reflect.DeepEqual(before, f.blk.Snapshot()) {
		t.Fatalf("registers changed")
	}
	if f.level(t, types.Playback) != types.LevelError {
		t.Fatalf("level = %v", f.level(t, types.Playback))
	}
	// A later DMA failure unwinds the clock and topology too.
	f2 := newFixture(t, types.Gen2, "gen=gen2")
	before = f2.blk.Snapshot()
	f2.host.FailSetup(0, errcode.New("test", errcode.Error, "boom"))
	if err := f2.s.Acquire(types.Playback, params(48000)); err == nil {
		t.Fatalf("acquire succeeded with failing DMA")
	}
	if !reflect.DeepEqual(before, f2.blk.Snapshot()) {
		t.Fatalf("registers after rollback:\n got %v\nwant %v", f2.blk.Snapshot(), before)
	}
	if _, rate := f2.s.ClockPlan(); rate != 0 {
		t.Fatalf("clock domain still in use at %d Hz", rate)
	}
	if err := f2.s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestSharedClockRate(t *testing.T) {
	f := newFixture(t, types.Gen2, "gen=gen2")
	if err := f.s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("playback: %v", err)
	}
	if err := f.s.Acquire(types.Playback, params(48000)); !errors.Is(err, errcode.Busy) {
		t.Fatalf("second playback: want Busy, got %v", err)
	}
	if err := f.s.Acquire(types.Capture, params(44100)); !errors.Is(err, errcode.Conflict) {
		t.Fatalf("capture at 44.1k: want Conflict, got %v", err)
	}
	if f.table.Held(reserve.ClassChannel) != 1 {
		t.Fatalf("conflicting capture kept a channel")
	}
	if err := f.s.Acquire(types.Capture, params(48000)); err != nil {
		t.Fatalf("capture at 48k: %v", err)
	}
	if err := f.s.Release(types.Playback); err != nil {
		t.Fatalf("release playback: %v", err)
	}
	if _, rate := f.s.ClockPlan(); rate != 48000 {
		t.Fatalf("domain dropped while capture holds it: %d", rate)
	}
	_ = f.s.Release(types.Capture)
	if _, rate := f.s.ClockPlan(); rate != 0 {
		t.Fatalf("domain kept after last release: %d", rate)
	}
}

func TestConverterPath(t *testing.T) {
	f := newFixture(t, types.Gen2, "gen=gen2 play.src=1 play.src_rate=48k cap.src=1 cap.mix=1 cap.src_rate=48k")
	if err := f.s.Acquire(types.Playback, params(44100)); err != nil {
		t.Fatalf("playback: %v", err)
	}
	if _, rate := f.s.ClockPlan(); rate != 48000 {
		t.Fatalf("serial rate = %d", rate)
	}
	if got := f.blk.Read32(regmap.SrcIFSVR(0)); got != regmap.EncodeRatio(44100, 48000) {
		t.Fatalf("IFSVR = %#x", got)
	}
	var mem, pp *dma.Transfer
	for _, e := range f.host.Events() {
		switch e.T.Mode {
		case dma.MemToDev:
			mem = &e.T
		case dma.DevToDev:
			pp = &e.T
		}
	}
	if mem == nil || pp == nil {
		t.Fatalf("want a memory and a peripheral transfer: %+v", f.host.Events())
	}
	in, _ := route.Resolve(route.Converter(0), route.ToMemory)
	if mem.Route.Dst != in.Address {
		t.Fatalf("memory transfer goes to %#x, want converter input %#x", mem.Route.Dst, in.Address)
	}
	if pp.Route.RequestID != 0x40<<24 {
		t.Fatalf("pair request id = %#x", pp.Route.RequestID)
	}

	if err := f.s.Acquire(types.Capture, params(44100)); err != nil {
		t.Fatalf("capture with mix: %v", err)
	}
	if f.table.Held(reserve.ClassCommand) != 1 || f.table.Held(reserve.ClassConverter) != 2 {
		t.Fatalf("converter leases: cmd=%d src=%d", f.table.Held(reserve.ClassCommand), f.table.Held(reserve.ClassConverter))
	}
	if err := f.s.Trigger(types.Capture, types.TriggerStart); err != nil {
		t.Fatalf("start capture: %v", err)
	}
	if f.blk.Read32(regmap.CmdCtrl(0)) == 0 {
		t.Fatalf("command lane not started")
	}
	_ = f.s.Release(types.Capture)
	_ = f.s.Release(types.Playback)
	if f.blk.Read32(regmap.CmdCtrl(0)) != 0 || f.blk.Read32(regmap.SrcIFSVR(0)) != 0 {
		t.Fatalf("converter state left behind")
	}
	if f.table.Held(reserve.ClassDMAPeri) != 0 {
		t.Fatalf("peripheral DMA leases left")
	}
}

func TestAutoChannelAndStuckIdle(t *testing.T) {
	f := newFixture(t, types.Gen2, "gen=gen2 play.ssi=1 cap.ssi=auto cap.master=0")
	if err := f.s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("playback: %v", err)
	}
	if err := f.s.Acquire(types.Capture, params(48000)); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if got := f.s.Channels(types.Capture); !reflect.DeepEqual(got, []int{0}) {
		t.Fatalf("auto picked %v", got)
	}
	if err := f.s.Trigger(types.Capture, types.TriggerStart); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.blk.Stick(0, true)
	if err := f.s.Trigger(types.Capture, types.TriggerStop); err != nil {
		t.Fatalf("stop must tolerate a stuck channel: %v", err)
	}
	if f.level(t, types.Capture) != types.LevelStopped {
		t.Fatalf("level = %v", f.level(t, types.Capture))
	}
	if err := f.s.Release(types.Capture); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func salvator(t *testing.T) string {
	t.Helper()
	opts, ok := config.BoardLookup("salvator-x")
	if !ok {
		t.Fatalf("salvator-x not known")
	}
	return opts
}

func TestSharedPinsEitherOrder(t *testing.T) {
	f := newFixture(t, types.Gen2, salvator(t))
	if err := f.s.Acquire(types.Capture, params(48000)); err != nil {
		t.Fatalf("capture first: %v", err)
	}
	if err := f.s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("playback after capture: %v", err)
	}
	if f.blk.Read32(regmap.Mode1)&regmap.Share01 == 0 {
		t.Fatalf("capture did not join playback pins: mode1=%#x", f.blk.Read32(regmap.Mode1))
	}

	// Playback leaves and comes back while capture keeps the pins.
	if err := f.s.Release(types.Playback); err != nil {
		t.Fatalf("release playback: %v", err)
	}
	if err := f.s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("playback again: %v", err)
	}
	for _, d := range []types.Direction{types.Playback, types.Capture} {
		if err := f.s.Release(d); err != nil {
			t.Fatalf("release %v: %v", d, err)
		}
	}
	if got := f.blk.Read32(regmap.Mode1); got != 0 {
		t.Fatalf("mode1 = %#x after release", got)
	}
}

func TestConcurrentDirections(t *testing.T) {
	f := newFixture(t, types.Gen2, salvator(t))
	run := func(d types.Direction, ch int) {
		for i := 0; i < 50; i++ {
			if err := f.s.Acquire(d, params(48000)); err != nil {
				t.Errorf("%v acquire: %v", d, err)
				return
			}
			if who, ok := f.table.Holder(reserve.ClassChannel, ch); !ok || who != owner(d) {
				t.Errorf("channel %d holder = %q, %v", ch, who, ok)
			}
			if _, rate := f.s.ClockPlan(); rate != 48000 {
				t.Errorf("%v sees serial rate %d", d, rate)
			}
			if err := f.s.Trigger(d, types.TriggerStart); err != nil {
				t.Errorf("%v start: %v", d, err)
			}
			if err := f.s.Trigger(d, types.TriggerStop); err != nil {
				t.Errorf("%v stop: %v", d, err)
			}
			if err := f.s.Release(d); err != nil {
				t.Errorf("%v release: %v", d, err)
				return
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); run(types.Playback, 0) }()
	go func() { defer wg.Done(); run(types.Capture, 1) }()
	wg.Wait()

	if _, rate := f.s.ClockPlan(); rate != 0 {
		t.Fatalf("domain kept after both released: %d", rate)
	}
	for _, c := range []reserve.Class{reserve.ClassChannel, reserve.ClassDMA} {
		if n := f.table.Held(c); n != 0 {
			t.Fatalf("%v: %d leases left", c, n)
		}
	}
	if got := f.blk.Read32(regmap.Mode1); got != 0 {
		t.Fatalf("mode1 = %#x after release", got)
	}
}

// overrunEngine reports a residue larger than any buffer.
type overrunEngine struct {
	*dma.Host
	rem uint32
}

func (e overrunEngine) BytesRemaining(int) uint32 { return e.rem }

func TestPointerClampsResidue(t *testing.T) {
	cfg, _ := config.Parse("gen=gen2")
	s, err := New(Options{Config: cfg, Regs: sim.New(types.Gen2), DMA: overrunEngine{Host: dma.NewHost(), rem: 5000}, Table: reserve.NewTable(types.Gen2)})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Acquire(types.Playback, params(48000)); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer s.Release(types.Playback)
	if pos, err := s.Pointer(types.Playback); err != nil || pos != 0 {
		t.Fatalf("pointer = %d, %v", pos, err)
	}
}

func TestParamChecks(t *testing.T) {
	f := newFixture(t, types.Gen2, "gen=gen2 play.rate_max=48k")
	if err := f.s.Acquire(types.Playback, params(96000)); !errors.Is(err, errcode.UnsupportedRate) {
		t.Fatalf("rate above range: %v", err)
	}
	p := params(48000)
	p.PeriodBytes = 8192
	if err := f.s.Acquire(types.Playback, p); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("period larger than buffer: %v", err)
	}
	if _, err := f.s.Pointer(types.Playback); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("pointer on idle stream: %v", err)
	}
	if err := f.s.Trigger(types.Capture, types.TriggerStart); !errors.Is(err, errcode.InvalidArgument) {
		t.Fatalf("trigger on idle stream: %v", err)
	}
}

func TestGenerationMismatch(t *testing.T) {
	cfg, _ := config.Parse("gen=gen2")
	_, err := New(Options{Config: cfg, Regs: sim.New(types.Gen2), DMA: dma.NewHost(), Table: reserve.NewTable(types.Gen1)})
	if !errors.Is(err, errcode.Conflict) {
		t.Fatalf("want Conflict, got %v", err)
	}
	_, err = New(Options{Regs: sim.New(types.GenAuto), DMA: dma.NewHost()})
	if !errors.Is(err, errcode.NotSupported) {
		t.Fatalf("unknown version: want NotSupported, got %v", err)
	}
}
