package topology

import (
	"strconv"

	"github.com/golang/glog"

	"audiopath-go/errcode"
	"audiopath-go/services/audio/internal/clock"
	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
)

// ApplyClock programs p onto every channel of the clock domain: all
// channel-level divisors first, then each channel's source select, then the
// domain divisor and its enable.
func (c *Configurator) ApplyClock(channels []int, p clock.Plan) error {
	const op = "topology.apply_clock"
	div, ok := regmap.EncodeDiv(p.Stage1)
	if !ok {
		return errcode.New(op, errcode.InvalidArgument, "stage1 "+strconv.Itoa(p.Stage1))
	}
	if p.Stage2 < 1 || p.Stage2 > clock.MaxStage2(c.gen) {
		return errcode.New(op, errcode.InvalidArgument, "stage2 "+strconv.Itoa(p.Stage2))
	}
	for _, ch := range channels {
		if !ValidChannel(c.gen, ch) {
			return errcode.New(op, errcode.InvalidArgument, "channel "+strconv.Itoa(ch))
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range channels {
		c.regs.Write32(regmap.SSIDIV(ch), div)
	}
	sel, brr, ckr := regmap.ClkSelA, uint32(regmap.BRRA), regmap.CkrEnableA
	if p.Source == clock.ClockB {
		sel, brr, ckr = regmap.ClkSelB, regmap.BRRB, regmap.CkrEnableB
	}
	for _, ch := range channels {
		off, _ := regmap.ClkSel(ch)
		c.regs.Write32(off, regmap.WithClkSel(c.regs.Read32(off), ch, sel))
	}
	c.regs.Write32(brr, uint32(p.Stage2-1))
	regio.Update(c.regs, regmap.SSICKR, ckr, ckr)
	glog.V(2).Infof("[topology] clock %v on %v", p, channels)
	return nil
}

// ClearClock removes the channel-level divisor and source select of channels.
func (c *Configurator) ClearClock(channels []int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		if !ValidChannel(c.gen, ch) {
			continue
		}
		c.regs.Write32(regmap.SSIDIV(ch), 0)
		off, _ := regmap.ClkSel(ch)
		if cur := c.regs.Read32(off); cur != regmap.WithClkSel(cur, ch, regmap.ClkSelNone) {
			c.regs.Write32(off, regmap.WithClkSel(cur, ch, regmap.ClkSelNone))
		}
	}
}

// ClearClockDomain disables both domain dividers. Call once the last
// channel using the domain has been cleared.
func (c *Configurator) ClearClockDomain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.regs.Write32(regmap.SSICKR, 0)
	c.regs.Write32(regmap.BRRA, 0)
	c.regs.Write32(regmap.BRRB, 0)
}
