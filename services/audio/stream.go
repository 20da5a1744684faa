package audio

import (
	"strconv"

	"github.com/golang/glog"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/config"
	"audiopath-go/services/audio/internal/convert"
	"audiopath-go/services/audio/internal/dma"
	"audiopath-go/services/audio/internal/reserve"
	"audiopath-go/services/audio/internal/route"
	"audiopath-go/services/audio/internal/topology"
	"audiopath-go/types"
	"audiopath-go/x/mathx"
)

// stream is the hardware held by one direction between Acquire and Release.
type stream struct {
	dir      types.Direction
	params   types.StreamParams
	leases   []reserve.Lease
	channels []int
	group    *topology.Group
	clock    func() // releases the clock domain

	memCh   int
	memXfer dma.Transfer
	ppCh    int // -1 without a converter
	ppXfer  dma.Transfer
	conv    *convert.Lane

	running bool
}

func owner(d types.Direction) string { return "audio/" + d.String() }

// undo is a stack of rollback steps, run newest first.
type undo []func()

func (u *undo) push(f func()) { *u = append(*u, f) }

func (u undo) run() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}

// Acquire reserves and configures everything direction d needs for p.
// On failure every completed step is undone.
func (s *Subsystem) Acquire(d types.Direction, p types.StreamParams) (err error) {
	const op = "audio.acquire"
	s.mu.Lock()
	defer s.mu.Unlock()

	if d != types.Playback && d != types.Capture {
		return errcode.New(op, errcode.InvalidArgument, "direction")
	}
	if s.streams[d] != nil {
		return errcode.New(op, errcode.Busy, d.String()+" already acquired")
	}
	sc := *s.cfg.Stream(d)
	if p.Voices == 0 {
		p.Voices = sc.Voices
	}
	if p.Bits == 0 {
		p.Bits = sc.Bits
	}
	if err := checkParams(sc, p); err != nil {
		return errcode.Wrap(op, err)
	}

	st := &stream{dir: d, params: p, ppCh: -1}
	var u undo
	defer func() {
		if err != nil {
			u.run()
			glog.Infof("[audio] %v acquire failed: %v", d, err)
			s.publish(d, types.LevelError, string(errcode.Of(err)), nil)
			err = errcode.Wrap(op, err)
		}
	}()

	serialRate := p.Rate
	if sc.SRC && sc.SRCRate != 0 {
		serialRate = sc.SRCRate
	}
	if s.rateUsers > 0 && s.rate != serialRate {
		return errcode.New(op, errcode.Conflict,
			"serial clock runs at "+strconv.FormatUint(uint64(s.rate), 10)+" Hz")
	}

	// ---- reservations ----

	lease := func(l reserve.Lease, err error) error {
		if err != nil {
			return err
		}
		st.leases = append(st.leases, l)
		u.push(func() { s.table.Release(l) })
		return nil
	}
	if sc.Auto {
		pred := func(ch int) bool {
			return topology.ModeCapable(s.gen, ch, sc.Mode) &&
				(serialRate < topology.HighRate || topology.Capable(s.gen, ch, topology.CapHighRate))
		}
		l, err := s.table.Reserve(owner(d), reserve.ClassChannel, pred)
		if err := lease(l, err); err != nil {
			return err
		}
		st.channels = []int{l.Index()}
	} else {
		for _, run := range runs(sc.SSI) {
			if err := lease(s.table.ReserveRange(owner(d), reserve.ClassChannel, run[0], run[1])); err != nil {
				return err
			}
		}
		st.channels = append([]int(nil), sc.SSI...)
	}

	dl, err := s.table.Reserve(owner(d), reserve.ClassDMA, nil)
	if err := lease(dl, err); err != nil {
		return err
	}
	st.memCh = dl.Index()

	if sc.SRC {
		cl, err := s.table.Reserve(owner(d), reserve.ClassConverter, func(i int) bool {
			return convert.InLine(s.gen, i) && (p.Rate < topology.HighRate || convert.HighRate(s.gen, i))
		})
		if err := lease(cl, err); err != nil {
			return err
		}
		pl, err := s.table.Reserve(owner(d), reserve.ClassDMAPeri, nil)
		if err := lease(pl, err); err != nil {
			return err
		}
		st.ppCh = pl.Index()
		st.conv = &convert.Lane{Index: cl.Index(), Command: -1}
		if d == types.Playback {
			st.conv.InRate, st.conv.OutRate = p.Rate, serialRate
		} else {
			st.conv.InRate, st.conv.OutRate = serialRate, p.Rate
		}
		if sc.Mix {
			ml, err := s.table.Reserve(owner(d), reserve.ClassCommand, nil)
			if err := lease(ml, err); err != nil {
				return err
			}
			st.conv.Command = ml.Index()
		}
	}

	// ---- clock ----

	release, err := s.useClock(st.channels, serialRate, topology.FrameWidth(sc.Mode, p.Bits))
	if err != nil {
		return err
	}
	st.clock = release
	u.push(release)
	if err := s.codec.SetSampleRate(serialRate); err != nil {
		return err
	}

	// ---- topology ----

	req := topology.Request{
		Mode:      sc.Mode,
		Transfer:  sc.Transfer,
		Voices:    p.Voices,
		Bits:      p.Bits,
		Rate:      serialRate,
		ShareWith: sc.Share,
	}
	for i, ch := range st.channels {
		role := types.RoleSlave
		if sc.Master && i == 0 {
			role = types.RoleMaster
		}
		req.Channels = append(req.Channels, topology.Channel{Index: ch, Role: role, Direction: d})
	}
	g, err := s.topo.Configure(req)
	if err != nil {
		return err
	}
	st.group = g
	u.push(func() { s.topo.Teardown(g) })

	// ---- converter and routes ----

	if st.conv != nil {
		if err := convert.Program(s.regs, s.gen, *st.conv); err != nil {
			return err
		}
		lane := *st.conv
		u.push(func() { convert.Clear(s.regs, lane) })
	}
	if err := s.routeStream(st, sc); err != nil {
		return err
	}
	if err := s.dma.Setup(st.memCh, st.memXfer); err != nil {
		return err
	}
	u.push(func() { s.dma.Clear(st.memCh) })
	if st.ppCh >= 0 {
		if err := s.dma.Setup(st.ppCh, st.ppXfer); err != nil {
			return err
		}
		u.push(func() { s.dma.Clear(st.ppCh) })
	}

	s.streams[d] = st
	glog.Infof("[audio] %v acquired %s at %d Hz (serial %d Hz, clock %v)", d, g, p.Rate, serialRate, s.plan)
	s.publish(d, types.LevelAcquired, "ok", st)
	return nil
}

// routeStream resolves the memory transfer and, with a converter, the
// peripheral-to-peripheral hop.
func (s *Subsystem) routeStream(st *stream, sc config.Stream) error {
	first := st.channels[0]
	lane := route.Channel(first)
	if sc.Transfer == types.TransferBusIF {
		lane = route.ChannelBus(first, sc.Sub)
	}
	p := st.params
	xfer := func(desc route.Descriptor, m dma.Mode) dma.Transfer {
		return dma.Transfer{Route: desc, Mode: m, Bytes: p.BufferBytes, Period: p.PeriodBytes}
	}

	if st.conv == nil {
		if st.dir == types.Playback {
			d, err := route.MemToPeripheral(p.BufferAddr, lane)
			st.memXfer = xfer(d, dma.MemToDev)
			return err
		}
		d, err := route.PeripheralToMem(lane, p.BufferAddr)
		st.memXfer = xfer(d, dma.DevToMem)
		return err
	}

	conv := route.Converter(st.conv.Index)
	out := conv
	if st.conv.Command >= 0 {
		out = route.Command(st.conv.Command)
	}
	if st.dir == types.Playback {
		md, err := route.MemToPeripheral(p.BufferAddr, conv)
		if err != nil {
			return err
		}
		pd, err := route.ResolvePair(out, lane)
		if err != nil {
			return err
		}
		st.memXfer, st.ppXfer = xfer(md, dma.MemToDev), dma.Transfer{Route: pd, Mode: dma.DevToDev}
		return nil
	}
	pd, err := route.ResolvePair(lane, conv)
	if err != nil {
		return err
	}
	md, err := route.PeripheralToMem(out, p.BufferAddr)
	if err != nil {
		return err
	}
	st.memXfer, st.ppXfer = xfer(md, dma.DevToMem), dma.Transfer{Route: pd, Mode: dma.DevToDev}
	return nil
}

// Prepare re-issues the DMA setups made by Acquire. Pause and resume do
// not work on the hardware without it.
func (s *Subsystem) Prepare(d types.Direction) error {
	const op = "audio.prepare"
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.get(op, d)
	if err != nil {
		return err
	}
	if st.running {
		return errcode.New(op, errcode.Busy, d.String()+" is running")
	}
	if err := s.dma.Setup(st.memCh, st.memXfer); err != nil {
		return errcode.Wrap(op, err)
	}
	if st.ppCh >= 0 {
		if err := s.dma.Setup(st.ppCh, st.ppXfer); err != nil {
			return errcode.Wrap(op, err)
		}
	}
	s.publish(d, types.LevelPrepared, "ok", st)
	return nil
}

// Trigger starts or stops direction d.
func (s *Subsystem) Trigger(d types.Direction, cmd types.TriggerCmd) error {
	const op = "audio.trigger"
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.get(op, d)
	if err != nil {
		return err
	}
	switch cmd {
	case types.TriggerStart:
		if err := s.start(st); err != nil {
			s.publish(d, types.LevelError, string(errcode.Of(err)), st)
			return errcode.Wrap(op, err)
		}
		s.publish(d, types.LevelRunning, "ok", st)
	case types.TriggerStop:
		s.stop(st)
		s.publish(d, types.LevelStopped, "ok", st)
	default:
		return errcode.New(op, errcode.InvalidArgument, "trigger "+strconv.Itoa(int(cmd)))
	}
	return nil
}

// start: DMA engines, converter, channels, then bus-interface sub-lanes.
func (s *Subsystem) start(st *stream) (err error) {
	if st.running {
		return nil
	}
	var u undo
	defer func() {
		if err != nil {
			u.run()
		}
	}()
	if err := s.dma.Start(st.memCh); err != nil {
		return err
	}
	u.push(func() { _ = s.dma.Stop(st.memCh) })
	if st.ppCh >= 0 {
		if err := s.dma.Start(st.ppCh); err != nil {
			return err
		}
		u.push(func() { _ = s.dma.Stop(st.ppCh) })
	}
	if st.conv != nil {
		convert.Start(s.regs, *st.conv)
		lane := *st.conv
		u.push(func() { convert.Stop(s.regs, lane) })
	}
	if err := s.topo.Start(st.group); err != nil {
		return err
	}
	u.push(func() { _ = s.topo.Halt(st.group) })
	if err := s.topo.StartBusIF(st.group); err != nil {
		return err
	}
	st.running = true
	return nil
}

// stop reverses start and ends with the bounded idle wait. A timeout there
// is logged and otherwise ignored.
func (s *Subsystem) stop(st *stream) {
	if !st.running {
		return
	}
	if err := s.topo.StopBusIF(st.group); err != nil {
		glog.Warningf("[audio] %v busif stop: %v", st.dir, err)
	}
	if err := s.topo.Halt(st.group); err != nil {
		glog.Warningf("[audio] %v halt: %v", st.dir, err)
	}
	if st.conv != nil {
		convert.Stop(s.regs, *st.conv)
	}
	if st.ppCh >= 0 {
		_ = s.dma.Stop(st.ppCh)
	}
	_ = s.dma.Stop(st.memCh)
	if err := s.topo.WaitIdle(st.group); err != nil {
		glog.Warningf("[audio] %v: %v", st.dir, err)
	}
	st.running = false
}

// Release stops d if needed and returns everything Acquire took.
// Releasing an idle direction does nothing.
func (s *Subsystem) Release(d types.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d != types.Playback && d != types.Capture {
		return errcode.New("audio.release", errcode.InvalidArgument, "direction")
	}
	st := s.streams[d]
	if st == nil {
		return nil
	}
	s.stop(st)
	if st.ppCh >= 0 {
		s.dma.Clear(st.ppCh)
	}
	s.dma.Clear(st.memCh)
	if st.conv != nil {
		convert.Clear(s.regs, *st.conv)
	}
	s.topo.Teardown(st.group)
	st.clock()
	for i := len(st.leases) - 1; i >= 0; i-- {
		s.table.Release(st.leases[i])
	}
	s.streams[d] = nil
	glog.Infof("[audio] %v released", d)
	s.publish(d, types.LevelIdle, "ok", nil)
	return nil
}

// Pointer is the hardware position in frames within the buffer.
func (s *Subsystem) Pointer(d types.Direction) (uint32, error) {
	const op = "audio.pointer"
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.get(op, d)
	if err != nil {
		return 0, err
	}
	p := st.params
	fb := p.FrameBytes()
	if p.BufferBytes == 0 || fb == 0 {
		return 0, nil
	}
	// Engines may report a full reload as more than one buffer.
	rem := mathx.Clamp(s.dma.BytesRemaining(st.memCh), 0, p.BufferBytes)
	done := (p.BufferBytes - rem) % p.BufferBytes
	return done / fb, nil
}

func (s *Subsystem) get(op string, d types.Direction) (*stream, error) {
	if d != types.Playback && d != types.Capture {
		return nil, errcode.New(op, errcode.InvalidArgument, "direction")
	}
	st := s.streams[d]
	if st == nil {
		return nil, errcode.New(op, errcode.InvalidArgument, d.String()+" not acquired")
	}
	return st, nil
}

func checkParams(sc config.Stream, p types.StreamParams) error {
	const op = "audio.params"
	switch {
	case p.Rate < sc.RateMin || p.Rate > sc.RateMax:
		return errcode.New(op, errcode.UnsupportedRate, strconv.FormatUint(uint64(p.Rate), 10)+" Hz outside configured range")
	case p.Voices <= 0:
		return errcode.New(op, errcode.InvalidArgument, "voices")
	case p.BufferBytes == 0 || p.PeriodBytes == 0 || p.PeriodBytes > p.BufferBytes:
		return errcode.New(op, errcode.InvalidArgument, "buffer geometry")
	case p.BufferBytes%p.FrameBytes() != 0:
		return errcode.New(op, errcode.InvalidArgument, "buffer is not a whole number of frames")
	}
	return nil
}

// runs splits sorted-or-not channel lists into contiguous [lo, hi] runs,
// preserving order.
func runs(chs []int) [][2]int {
	var out [][2]int
	for _, c := range chs {
		if n := len(out); n > 0 && out[n-1][1]+1 == c {
			out[n-1][1] = c
			continue
		}
		out = append(out, [2]int{c, c})
	}
	return out
}
