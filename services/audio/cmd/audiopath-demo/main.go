//go:build linux

// services/audio/cmd/audiopath-demo/main.go
//
// Drives one playback stream through acquire, prepare, start, stop and
// release, printing the published stream state. With -sim the register
// window is an in-memory model and no codec is touched.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"audiopath-go/bus"
	"audiopath-go/drivers/ak4613"
	"audiopath-go/errcode"
	"audiopath-go/services/audio"
	"audiopath-go/services/audio/config"
	"audiopath-go/services/audio/internal/codec"
	"audiopath-go/services/audio/internal/dma"
	"audiopath-go/services/audio/internal/regio"
	"audiopath-go/services/audio/internal/regmap"
	"audiopath-go/services/audio/internal/sim"
	"audiopath-go/types"
)

// ---------- Configuration ----------

var (
	board   = flag.String("board", "salvator-x", "board defaults to start from")
	opts    = flag.String("opts", "", "extra key=value options, applied after the board's")
	rate    = flag.Uint("rate", 48000, "stream rate in Hz")
	dwell   = flag.Duration("dwell", 2*time.Second, "time to run before stopping")
	useSim  = flag.Bool("sim", false, "use the in-memory register model")
	uio     = flag.String("uio", "", "UIO device exposing the audio block; /dev/mem when empty")
	i2cBus  = flag.String("i2c", "", "I2C bus of the AK4613 codec; no codec when empty")
	trace   = flag.Bool("trace", false, "log every register access at -v=3")
	bufAddr = flag.Uint("buf", 0x48000000, "DMA-visible buffer address")
)

const (
	bufferBytes = 16 * 1024
	periodBytes = 4 * 1024

	acquireTries = 3
	acquireDelay = 200 * time.Millisecond
)

func main() {
	flag.Parse()
	defer glog.Flush()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "audiopath-demo:", err)
		glog.Flush()
		os.Exit(int(errcode.Errno(err)))
	}
}

func run() error {
	cfg, err := config.ForBoard(*board, *opts)
	if err != nil {
		return err
	}

	// ---------- Hardware ----------

	var regs regio.Space
	cd := codec.Codec(codec.None{})
	if *useSim {
		gen := cfg.Gen
		if gen == types.GenAuto {
			gen = types.Gen2
		}
		regs = sim.New(gen)
	} else {
		if _, err := host.Init(); err != nil {
			return err
		}
		var w *regio.Window
		if *uio != "" {
			w, err = regio.OpenUIO(*uio, regmap.WindowSize)
		} else {
			w, err = regio.OpenPhys(regmap.WindowBase, regmap.WindowSize)
		}
		if err != nil {
			return err
		}
		defer w.Close()
		regs = w

		if *i2cBus != "" {
			b, err := i2creg.Open(*i2cBus)
			if err != nil {
				return err
			}
			defer b.Close()
			dev := ak4613.New(b)
			if err := dev.Configure(ak4613.Config{}); err != nil {
				return err
			}
			defer dev.PowerDown()
			cd = codec.AK4613{Dev: dev}
		}
	}
	if *trace {
		regs = regio.Trace(regs)
	}

	// ---------- Bus ----------

	b := bus.NewBus(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := watch(ctx, b.NewConnection("demo"))

	s, err := audio.New(audio.Options{
		Config: cfg,
		Regs:   regs,
		DMA:    dma.NewHost(),
		Codec:  cd,
		Bus:    b.NewConnection("audio"),
	})
	if err != nil {
		return err
	}

	// ---------- Sequence ----------

	p := types.StreamParams{
		Rate:        uint32(*rate),
		BufferAddr:  uint32(*bufAddr),
		BufferBytes: bufferBytes,
		PeriodBytes: periodBytes,
	}
	if err := acquire(s, p); err != nil {
		return err
	}
	defer s.Release(types.Playback)

	plan, serial := s.ClockPlan()
	fmt.Printf("channels %v, clock %v, serial %d Hz\n", s.Channels(types.Playback), plan, serial)

	if err := s.Prepare(types.Playback); err != nil {
		return err
	}
	if err := s.Trigger(types.Playback, types.TriggerStart); err != nil {
		return err
	}
	time.Sleep(*dwell)
	if pos, err := s.Pointer(types.Playback); err == nil {
		fmt.Printf("pointer %d frames\n", pos)
	}
	if err := s.Trigger(types.Playback, types.TriggerStop); err != nil {
		return err
	}
	if err := s.Release(types.Playback); err != nil {
		return err
	}

	cancel()
	<-done
	return nil
}

// acquire retries while another user holds the hardware.
func acquire(s *audio.Subsystem, p types.StreamParams) error {
	var err error
	for i := 0; i < acquireTries; i++ {
		if err = s.Acquire(types.Playback, p); err == nil || !errcode.Retryable(err) {
			return err
		}
		glog.Infof("[demo] acquire: %v, retrying", err)
		time.Sleep(acquireDelay)
	}
	return err
}

// watch prints every stream state change until ctx ends.
func watch(ctx context.Context, conn *bus.Connection) <-chan struct{} {
	sub := conn.Subscribe(bus.T("audio", bus.Single, "state"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case m := <-sub.Channel():
				if st, ok := m.Payload.(types.StreamState); ok {
					fmt.Printf("%-22s %-9s %s\n", m.Topic, st.Level, st.Status)
				}
			}
		}
	}()
	return done
}
