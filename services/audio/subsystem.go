// Package audio wires the serial audio block into playback and capture
// streams: it reserves hardware, plans and applies the clock, configures
// the channel topology and hands routed transfers to the DMA engine.
package audio

import (
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"audiopath-go/bus"
	"audiopath-go/errcode"
	"audiopath-go/services/audio/config"
	"audiopath-go/services/audio/internal/clock"
	"audiopath-go/services/audio/internal/codec"
	"audiopath-go/services/audio/internal/dma"
	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/services/audio/internal/reserve"
	"audiopath-go/services/audio/internal/topology"
	"audiopath-go/types"
	"audiopath-go/x/mathx"
)

// maxIdleRetries bounds the stop-time idle poll a caller may ask for.
const maxIdleRetries = 100000

// StreamOps is the lifecycle the host audio framework drives per direction.
type StreamOps interface {
	Acquire(dir types.Direction, p types.StreamParams) error
	Prepare(dir types.Direction) error
	Trigger(dir types.Direction, cmd types.TriggerCmd) error
	Release(dir types.Direction) error
	Pointer(dir types.Direction) (uint32, error)
}

var _ StreamOps = (*Subsystem)(nil)

// Options are the collaborators of a Subsystem. Regs and DMA are required.
type Options struct {
	Config config.Config
	Regs   regio.Space
	DMA    dma.Engine
	Codec  codec.Codec     // nil: no external codec
	Table  *reserve.Table  // nil: the process-wide table
	Bus    *bus.Connection // nil: state is not published

	// IdleRetries overrides the bounded idle poll on stop when positive.
	IdleRetries int
}

// Subsystem owns one audio block. All methods are safe for concurrent use;
// they serialize on one lock.
type Subsystem struct {
	mu    sync.Mutex
	cfg   config.Config
	gen   types.Generation
	regs  regio.Space
	topo  *topology.Configurator
	table *reserve.Table
	dma   dma.Engine
	codec codec.Codec
	conn  *bus.Connection

	// Serial clock domain, shared by both directions.
	rate      uint32
	plan      clock.Plan
	rateUsers int

	streams [2]*stream
}

// New resolves the hardware generation and builds a Subsystem.
func New(o Options) (*Subsystem, error) {
	const op = "audio.new"
	if o.Regs == nil || o.DMA == nil {
		return nil, errcode.New(op, errcode.InvalidArgument, "register space and DMA engine are required")
	}
	gen := o.Config.Gen
	if gen == types.GenAuto {
		gen = regmap.DecodeVersion(o.Regs.Read32(regmap.Version))
		if gen == types.GenAuto {
			return nil, errcode.New(op, errcode.NotSupported, "unknown audio block version")
		}
	}
	table := o.Table
	if table == nil {
		table = reserve.Default(gen)
	}
	if table.Generation() != gen {
		return nil, errcode.New(op, errcode.Conflict, "lease table is for "+table.Generation().String())
	}
	cd := o.Codec
	if cd == nil {
		cd = codec.None{}
	}
	topo := topology.New(o.Regs, gen)
	if o.IdleRetries > 0 {
		topo.IdleRetries = mathx.Clamp(o.IdleRetries, 1, maxIdleRetries)
	}
	s := &Subsystem{
		cfg:   o.Config,
		gen:   gen,
		regs:  o.Regs,
		topo:  topo,
		table: table,
		dma:   o.DMA,
		codec: cd,
		conn:  o.Bus,
	}
	glog.Infof("[audio] %v audio block ready", gen)
	for _, d := range []types.Direction{types.Playback, types.Capture} {
		s.publish(d, types.LevelIdle, "ok", nil)
	}
	return s, nil
}

// Generation is the resolved hardware generation.
func (s *Subsystem) Generation() types.Generation { return s.gen }

// ClockPlan returns the applied plan and serial rate; rate is 0 when idle.
func (s *Subsystem) ClockPlan() (clock.Plan, uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan, s.rate
}

// Channels lists the channels held by direction d.
func (s *Subsystem) Channels(d types.Direction) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.streams[d]; st != nil {
		return append([]int(nil), st.channels...)
	}
	return nil
}

// ---- state publication ----

// StateTopic is where direction d's StreamState is retained.
func StateTopic(d types.Direction) bus.Topic {
	return bus.T("audio", d.String(), "state")
}

func (s *Subsystem) publish(d types.Direction, lvl types.StreamLevel, status string, st *stream) {
	if s.conn == nil {
		return
	}
	v := types.StreamState{Level: lvl, Status: status, TS: time.Now().UnixNano()}
	if st != nil {
		v.Rate = st.params.Rate
		v.Channels = append([]int(nil), st.channels...)
	}
	s.conn.Publish(s.conn.NewMessage(StateTopic(d), v, true))
}

// ---- clock domain ----

// useClock applies plan p for rate on channels, or joins the running domain.
func (s *Subsystem) useClock(channels []int, rate uint32, fw int) (func(), error) {
	const op = "audio.clock"
	p, err := clock.Solve(rate, s.gen, fw)
	if err != nil {
		return nil, err
	}
	if s.rateUsers > 0 {
		if rate != s.rate {
			return nil, errcode.New(op, errcode.Conflict,
				"serial clock runs at "+strconv.FormatUint(uint64(s.rate), 10)+" Hz")
		}
		if p.Source == s.plan.Source && p.Stage2 != s.plan.Stage2 {
			return nil, errcode.New(op, errcode.Conflict, "frame width needs another domain divisor")
		}
	}
	if err := s.topo.ApplyClock(channels, p); err != nil {
		return nil, err
	}
	s.rateUsers++
	s.rate, s.plan = rate, p
	glog.V(2).Infof("[audio] clock %v for %d Hz (%d users)", p, rate, s.rateUsers)
	return func() { s.dropClock(channels) }, nil
}

func (s *Subsystem) dropClock(channels []int) {
	s.topo.ClearClock(channels)
	s.rateUsers--
	if s.rateUsers <= 0 {
		s.rateUsers = 0
		s.rate, s.plan = 0, clock.Plan{}
		s.topo.ClearClockDomain()
	}
}
