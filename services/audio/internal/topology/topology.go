// Package topology configures serial channels into pin-sharing groups and
// drives their start/stop sequencing. Every register access goes through a
// regio.Space; bit encodings live in regmap.
package topology

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/types"
	"audiopath-go/x/mathx"
)

// State is the lifecycle state of one channel.
type State uint8

const (
	Unconfigured State = iota
	Configured
	Started
	Stopped
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case Started:
		return "started"
	case Stopped:
		return "stopped"
	}
	return "unconfigured"
}

// Channel is one requested member of a group.
type Channel struct {
	Index     int
	Role      types.Role
	Direction types.Direction // Playback transmits, Capture receives
}

// Request describes a group to configure.
type Request struct {
	Channels []Channel
	Mode     types.OperatingMode
	Transfer types.TransferMode
	Voices   int
	Bits     int
	Rate     uint32 // used for the high-rate capability check only

	// ShareWith lists channels of another owner whose clock and frame-sync
	// pins this group joins. A partner that is not configured yet is joined
	// when it is.
	ShareWith []int
}

// Group is a configured set of channels. It is owned by the caller until
// passed to Teardown.
type Group struct {
	Members  []Channel // sorted by index
	Mode     types.OperatingMode
	Transfer types.TransferMode
	Voices   int
	Bits     int
	Sync     Sync

	shareWith []int  // requested partners, joined once they are configured
	share     uint32 // MODE1 bits this group holds a reference on
	source    int    // pin-source channel, -1 if every member is slave
	gone      bool
}

// Indices lists the member channel indices in ascending order.
func (g *Group) Indices() []int {
	out := make([]int, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.Index
	}
	return out
}

// PinSource is the channel driving the shared clocks, or -1.
func (g *Group) PinSource() int { return g.source }

// FrameWidth is the group's frame length in bit clocks.
func (g *Group) FrameWidth() int { return FrameWidth(g.Mode, g.Bits) }

func (g *Group) String() string {
	s := g.Mode.String() + "["
	for i, m := range g.Members {
		if i > 0 {
			s += ","
		}
		s += strconv.Itoa(m.Index)
	}
	return s + "]/" + g.Sync.String()
}

// pinRec counts the groups relying on one MODE1 sharing bit.
type pinRec struct {
	refs   int
	source int
}

const maxChannels = 10

// Default bounded idle poll.
const (
	DefaultIdleRetries = 1000
	DefaultIdleDelay   = 5 * time.Microsecond
)

// Configurator owns the channel, group and pin-sharing state of one audio block.
type Configurator struct {
	mu   sync.Mutex
	regs regio.Space
	gen  types.Generation

	state [maxChannels]State
	role  [maxChannels]types.Role
	group [maxChannels]*Group
	pins  map[uint32]*pinRec // keyed by single MODE1 bit

	// IdleRetries and IdleDelay bound WaitIdle.
	IdleRetries int
	IdleDelay   time.Duration
	sleep       func(time.Duration)
}

// New returns a Configurator for gen over regs.
func New(regs regio.Space, gen types.Generation) *Configurator {
	return &Configurator{
		regs:        regs,
		gen:         gen,
		pins:        make(map[uint32]*pinRec),
		IdleRetries: DefaultIdleRetries,
		IdleDelay:   DefaultIdleDelay,
		sleep:       time.Sleep,
	}
}

// State returns the state of channel ch.
func (c *Configurator) State(ch int) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ValidChannel(c.gen, ch) {
		return Unconfigured
	}
	return c.state[ch]
}

// Configure validates r completely, then commits it. On error nothing is written.
func (c *Configurator) Configure(r Request) (*Group, error) {
	const op = "topology.configure"
	c.mu.Lock()
	defer c.mu.Unlock()

	g, err := c.check(op, r)
	if err != nil {
		return nil, err
	}
	set := unionSorted(g.Indices(), c.live(r.ShareWith))
	// Owners that asked for one of these channels before it existed join now.
	for _, og := range c.waiting(g) {
		next := unionSorted(set, og.Indices())
		if _, ok := shareBits(next); !ok {
			continue
		}
		if og.source >= 0 && g.source >= 0 && og.source != g.source {
			continue
		}
		set = next
		if g.source < 0 {
			g.source = og.source
		}
	}
	bits, ok := shareBits(set)
	if !ok {
		return nil, errcode.New(op, errcode.Conflict, "share partners of "+g.String()+" are not all configured")
	}

	var claim uint32
	for _, ch := range set {
		claim |= regmap.ShareBitsOf(ch)
	}
	conflicting := claim &^ bits
	if held := c.held() & conflicting; held != 0 {
		return nil, errcode.New(op, errcode.Conflict, "pins already shared as "+strconv.FormatUint(uint64(held), 16))
	}
	src := g.source
	for _, b := range splitBits(bits) {
		rec := c.pins[b]
		if rec == nil || rec.source < 0 {
			continue
		}
		if src >= 0 && rec.source != src {
			return nil, errcode.New(op, errcode.InvalidArgument, "shared pins already have a master")
		}
		src = rec.source
	}

	// ---- commit ----

	cur := c.regs.Read32(regmap.Mode1)
	if next := cur&^conflicting | bits; next != cur {
		if stale := cur & conflicting; stale != 0 {
			glog.V(2).Infof("[topology] clearing stale pin sharing %#x", stale)
		}
		c.regs.Write32(regmap.Mode1, next)
	}
	g.shareWith = append([]int(nil), r.ShareWith...)
	if bits != 0 {
		g.source = src
		c.hold(g, bits)
		// Owners of the joined channels hold the new bits too.
		for _, ch := range set {
			if og := c.group[ch]; og != nil && og != g {
				if src >= 0 {
					og.source = src
				}
				c.hold(og, bits)
			}
		}
	}

	for _, m := range g.Members {
		lane := regmap.Lane{
			Transmit: m.Direction == types.Playback,
			Master:   m.Role == types.RoleMaster,
			Bits:     g.Bits,
			Voices:   laneVoices(g),
			Mode:     g.Mode,
		}
		c.regs.Write32(regmap.SSIWSR(m.Index), regmap.EncodeWSR(g.Mode))
		c.regs.Write32(regmap.SSICR(m.Index), regmap.EncodeCR(lane))
		indep := uint32(1) << uint(m.Index)
		if g.Transfer == types.TransferIndependent {
			regio.Update(c.regs, regmap.Mode0, indep, indep)
		} else {
			regio.Update(c.regs, regmap.Mode0, indep, 0)
		}
		c.state[m.Index] = Configured
		c.role[m.Index] = m.Role
		c.group[m.Index] = g
	}
	if bit := syncBit(g.Sync, g.Indices()); bit != 0 {
		regio.Update(c.regs, regmap.Mode2, bit, bit)
	}
	glog.V(2).Infof("[topology] configured %s source=%d", g, g.source)
	return g, nil
}

// check performs every validation of Configure without side effects.
func (c *Configurator) check(op string, r Request) (*Group, error) {
	inval := func(msg string) (*Group, error) {
		return nil, errcode.New(op, errcode.InvalidArgument, msg)
	}
	if len(r.Channels) == 0 || len(r.Channels) > 4 {
		return inval("1 to 4 channels")
	}
	if r.Bits != 16 && r.Bits != 24 && r.Bits != 32 {
		return inval("sample bits " + strconv.Itoa(r.Bits))
	}
	if c.gen == types.Gen1 && (r.Mode == types.ModeTDMExtended || r.Mode.IsSplit()) {
		return nil, errcode.New(op, errcode.NotSupported, r.Mode.String()+" on "+c.gen.String())
	}

	members := append([]Channel(nil), r.Channels...)
	sort.Slice(members, func(i, j int) bool { return members[i].Index < members[j].Index })
	idx := make([]int, len(members))
	masters := 0
	source := -1
	for i, m := range members {
		if !ValidChannel(c.gen, m.Index) {
			return inval("channel " + strconv.Itoa(m.Index))
		}
		if i > 0 && idx[i-1] == m.Index {
			return inval("duplicate channel " + strconv.Itoa(m.Index))
		}
		idx[i] = m.Index
		if m.Role == types.RoleMaster {
			masters++
			source = m.Index
		}
	}

	sy, err := classify(op, members, r.Mode)
	if err != nil {
		return nil, err
	}
	lanes := 1
	if r.Mode == types.ModeMultichannel {
		lanes = len(members)
	}
	if !ModeVoices(r.Mode, lanes, r.Voices) {
		return inval(strconv.Itoa(r.Voices) + " voices in " + r.Mode.String())
	}
	if r.Mode.IsSplit() && r.Transfer != types.TransferBusIF {
		return inval(r.Mode.String() + " needs the bus interface")
	}
	for _, ch := range idx {
		if !ModeCapable(c.gen, ch, r.Mode) {
			return inval("channel " + strconv.Itoa(ch) + " cannot do " + r.Mode.String())
		}
		if r.Rate >= HighRate && !Capable(c.gen, ch, CapHighRate) {
			return inval("channel " + strconv.Itoa(ch) + " is limited to 96 kHz")
		}
	}

	for _, ch := range r.ShareWith {
		if !ValidChannel(c.gen, ch) {
			return inval("share target " + strconv.Itoa(ch))
		}
		if contains(idx, ch) {
			return inval("channel " + strconv.Itoa(ch) + " both requested and shared")
		}
		if c.state[ch] != Unconfigured && c.role[ch] == types.RoleMaster {
			masters++
			source = ch
		}
	}
	if masters > 1 {
		return inval("more than one master on shared pins")
	}
	if _, ok := shareBits(unionSorted(idx, r.ShareWith)); !ok {
		return inval("channels cannot share pins")
	}

	for _, ch := range idx {
		if c.state[ch] != Unconfigured {
			return nil, errcode.New(op, errcode.Busy, "channel "+strconv.Itoa(ch)+" is "+c.state[ch].String())
		}
	}

	return &Group{
		Members:  members,
		Mode:     r.Mode,
		Transfer: r.Transfer,
		Voices:   r.Voices,
		Bits:     r.Bits,
		Sync:     sy,
		source:   source,
	}, nil
}

func classify(op string, m []Channel, mode types.OperatingMode) (Sync, error) {
	if mode == types.ModeMultichannel {
		for _, x := range m[1:] {
			if x.Direction != m[0].Direction {
				return 0, errcode.New(op, errcode.InvalidArgument, "multichannel lanes share one direction")
			}
		}
		switch len(m) {
		case 3:
			if m[0].Index == 0 && m[1].Index == 1 && m[2].Index == 2 {
				return SyncGroup3, nil
			}
		case 4:
			if m[0].Index == 0 && m[1].Index == 1 && m[2].Index == 2 && m[3].Index == 9 {
				return SyncGroup4, nil
			}
		}
		return 0, errcode.New(op, errcode.InvalidArgument, "multichannel needs lanes {0,1,2} or {0,1,2,9}")
	}
	switch len(m) {
	case 1:
		return SyncNone, nil
	case 2:
		pair := m[0].Index == 3 && m[1].Index == 4 || m[0].Index == 7 && m[1].Index == 8
		if pair && m[0].Direction != m[1].Direction {
			return SyncDuplex, nil
		}
	}
	return 0, errcode.New(op, errcode.InvalidArgument, "channels are not a synchronizable set")
}

// ModeCapable reports whether channel ch can run in mode m on gen.
func ModeCapable(gen types.Generation, ch int, m types.OperatingMode) bool {
	switch m {
	case types.ModeMultichannel:
		return Capable(gen, ch, CapMultichannel)
	case types.ModeTDM:
		return Capable(gen, ch, CapTDM)
	case types.ModeTDMExtended:
		return Capable(gen, ch, CapTDMExtended)
	case types.ModeTDMSplitMono, types.ModeTDMSplitStereo:
		return Capable(gen, ch, CapTDMSplit)
	}
	return ValidChannel(gen, ch)
}

func laneVoices(g *Group) int {
	if g.Mode == types.ModeMultichannel {
		return 2
	}
	return g.Voices
}

// Start enables the group. Synchronized groups arm every member, then
// issue one group start; a single channel is enabled directly.
func (c *Configurator) Start(g *Group) error {
	const op = "topology.start"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.owned(op, g); err != nil {
		return err
	}
	if c.state[g.Members[0].Index] == Started {
		return nil
	}

	if bit := syncBit(g.Sync, g.Indices()); bit != 0 {
		for _, m := range g.Members {
			c.regs.Write32(regmap.SSICR(m.Index), regmap.Arm(c.regs.Read32(regmap.SSICR(m.Index))))
		}
		regio.Update(c.regs, regmap.Control, bit, bit)
	} else {
		ch := g.Members[0].Index
		c.regs.Write32(regmap.SSICR(ch), regmap.Enable(c.regs.Read32(regmap.SSICR(ch))))
	}
	c.setState(g, Started)
	glog.V(2).Infof("[topology] started %s", g)
	return nil
}

// Halt stops the group: group stop first, then every member.
func (c *Configurator) Halt(g *Group) error {
	const op = "topology.halt"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.owned(op, g); err != nil {
		return err
	}
	if c.state[g.Members[0].Index] != Started {
		return nil
	}
	if bit := syncBit(g.Sync, g.Indices()); bit != 0 {
		regio.Update(c.regs, regmap.Control, bit, 0)
	}
	for _, m := range g.Members {
		c.regs.Write32(regmap.SSICR(m.Index), regmap.Disable(c.regs.Read32(regmap.SSICR(m.Index))))
	}
	c.setState(g, Stopped)
	return nil
}

// WaitIdle polls every member's idle indicator, at most IdleRetries times each.
func (c *Configurator) WaitIdle(g *Group) error {
	const op = "topology.wait_idle"
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.owned(op, g); err != nil {
		return err
	}
	retries := mathx.Max(c.IdleRetries, 1)
	var first error
	for _, m := range g.Members {
		idle := false
		for i := 0; i < retries; i++ {
			if regmap.Idle(c.regs.Read32(regmap.SSISR(m.Index))) {
				idle = true
				break
			}
			c.sleep(c.IdleDelay)
		}
		if !idle && first == nil {
			first = errcode.New(op, errcode.Timeout, "channel "+strconv.Itoa(m.Index)+" not idle")
		}
	}
	return first
}

// Stop is Halt followed by WaitIdle.
func (c *Configurator) Stop(g *Group) error {
	if err := c.Halt(g); err != nil {
		return err
	}
	return c.WaitIdle(g)
}

// busifLanes is the BUSIF_CTRL sub-lane enable mask for g.
func busifLanes(g *Group) uint32 {
	if g.Mode.IsSplit() {
		return 0xF
	}
	return 0x1
}

// StartBusIF enables the bus-interface sub-lanes of g. Independent groups
// have none and return nil.
func (c *Configurator) StartBusIF(g *Group) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.owned("topology.busif_start", g); err != nil {
		return err
	}
	if g.Transfer != types.TransferBusIF {
		return nil
	}
	for _, m := range g.Members {
		c.regs.Write32(regmap.BusIFCtrl(m.Index), busifLanes(g))
	}
	return nil
}

// StopBusIF disables the bus-interface sub-lanes of g.
func (c *Configurator) StopBusIF(g *Group) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.owned("topology.busif_stop", g); err != nil {
		return err
	}
	if g.Transfer != types.TransferBusIF {
		return nil
	}
	for _, m := range g.Members {
		c.regs.Write32(regmap.BusIFCtrl(m.Index), 0)
	}
	return nil
}

// Teardown clears every register the group configured and returns its
// channels to Unconfigured. A second call is a no-op.
func (c *Configurator) Teardown(g *Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g == nil || g.gone {
		return
	}
	g.gone = true

	if bit := syncBit(g.Sync, g.Indices()); bit != 0 {
		regio.Update(c.regs, regmap.Control, bit, 0)
		regio.Update(c.regs, regmap.Mode2, bit, 0)
	}
	for _, m := range g.Members {
		c.regs.Write32(regmap.SSICR(m.Index), 0)
		c.regs.Write32(regmap.SSIWSR(m.Index), 0)
		if g.Transfer == types.TransferBusIF {
			c.regs.Write32(regmap.BusIFCtrl(m.Index), 0)
		}
		regio.Update(c.regs, regmap.Mode0, 1<<uint(m.Index), 0)
		c.state[m.Index] = Unconfigured
		c.role[m.Index] = types.RoleSlave
		c.group[m.Index] = nil
	}
	var free uint32
	for _, b := range splitBits(g.share) {
		if rec := c.pins[b]; rec != nil {
			rec.refs--
			if rec.refs <= 0 {
				delete(c.pins, b)
				free |= b
			}
		}
	}
	if free != 0 {
		regio.Update(c.regs, regmap.Mode1, free, 0)
	}
	glog.V(2).Infof("[topology] torn down %s", g)
}

func (c *Configurator) owned(op string, g *Group) error {
	if g == nil || g.gone || len(g.Members) == 0 {
		return errcode.New(op, errcode.InvalidArgument, "group is not configured")
	}
	for _, m := range g.Members {
		if c.group[m.Index] != g {
			return errcode.New(op, errcode.InvalidArgument, "channel "+strconv.Itoa(m.Index)+" not in group")
		}
	}
	return nil
}

func (c *Configurator) setState(g *Group, s State) {
	for _, m := range g.Members {
		c.state[m.Index] = s
	}
}

// live keeps the channels of chs that are configured.
func (c *Configurator) live(chs []int) []int {
	var out []int
	for _, ch := range chs {
		if ValidChannel(c.gen, ch) && c.state[ch] != Unconfigured {
			out = append(out, ch)
		}
	}
	return out
}

// waiting lists the live groups whose requested partners include a member of g.
func (c *Configurator) waiting(g *Group) []*Group {
	var out []*Group
	for _, og := range c.group {
		if og == nil || og == g || containsGroup(out, og) {
			continue
		}
		for _, ch := range og.shareWith {
			if contains(g.Indices(), ch) {
				out = append(out, og)
				break
			}
		}
	}
	return out
}

// held is the union of MODE1 bits some group relies on.
func (c *Configurator) held() uint32 {
	var h uint32
	for b := range c.pins {
		h |= b
	}
	return h
}

// hold takes one reference per bit of bits that g does not already hold.
func (c *Configurator) hold(g *Group, bits uint32) {
	for _, b := range splitBits(bits &^ g.share) {
		rec := c.pins[b]
		if rec == nil {
			rec = &pinRec{source: -1}
			c.pins[b] = rec
		}
		rec.refs++
		if g.source >= 0 {
			rec.source = g.source
		}
	}
	g.share |= bits
}

func splitBits(v uint32) []uint32 {
	var out []uint32
	for v != 0 {
		b := v & -v
		out = append(out, b)
		v &^= b
	}
	return out
}

func containsGroup(s []*Group, g *Group) bool {
	for _, x := range s {
		if x == g {
			return true
		}
	}
	return false
}

func unionSorted(a, b []int) []int {
	out := append([]int(nil), a...)
	for _, x := range b {
		if !contains(out, x) {
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
