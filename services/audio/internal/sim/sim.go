// Package sim is an in-memory model of the audio block's registers for hosts
// without the hardware. It reports a generation through VERSION and drives
// each channel's idle indicator from its enable bit.
package sim

import (
	"sync"

	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/types"
)

const channels = 10

// Block is a register model of one audio block.
type Block struct {
	*regio.RAM

	mu    sync.Mutex
	stuck [channels]bool
}

// New returns a Block that identifies as gen.
func New(gen types.Generation) *Block {
	b := &Block{RAM: regio.NewRAM()}
	b.Poke(regmap.Version, regmap.EncodeVersion(gen))
	for ch := 0; ch < channels; ch++ {
		b.Poke(regmap.SSISR(ch), regmap.IdleBit)
	}
	b.OnWrite = b.onWrite
	return b
}

// Stick keeps channel ch busy after it is disabled, so idle waits time out.
func (b *Block) Stick(ch int, busy bool) {
	b.mu.Lock()
	b.stuck[ch] = busy
	b.mu.Unlock()
	if !busy && !regmap.Enabled(b.Read32(regmap.SSICR(ch))) {
		b.Poke(regmap.SSISR(ch), b.Read32(regmap.SSISR(ch))|regmap.IdleBit)
	}
}

func (b *Block) onWrite(r *regio.RAM, off, v uint32) {
	for ch := 0; ch < channels; ch++ {
		if off != regmap.SSICR(ch) {
			continue
		}
		b.mu.Lock()
		stuck := b.stuck[ch]
		b.mu.Unlock()
		sr := r.Read32(regmap.SSISR(ch))
		if regmap.Enabled(v) || stuck {
			r.Poke(regmap.SSISR(ch), sr&^regmap.IdleBit)
		} else {
			r.Poke(regmap.SSISR(ch), sr|regmap.IdleBit)
		}
		return
	}
}
