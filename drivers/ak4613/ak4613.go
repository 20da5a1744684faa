// Package ak4613 provides a minimal driver for the AK4613 6-in/4-out audio
// codec commonly paired with the SoC's serial audio channels. It covers the
// data format and sampling-speed setup only; volume and mixer controls are
// left to the host audio framework.
//
// NOTE: I2C.Tx MUST perform a write followed by a repeated-start read when both
// w and r are provided, without releasing the bus.
package ak4613

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2C address with CAD pins low.
const Address = 0x10

// Errors returned by the driver.
var (
	ErrUnsupportedRate = errors.New("ak4613: unsupported sample rate")
	ErrFormat          = errors.New("ak4613: unsupported data format")
)

// Format is the serial data format on the codec side.
type Format uint8

const (
	FormatI2S    Format = iota // 24-bit I2S, stereo
	FormatTDM128               // 4 slots of 32 bits
	FormatTDM256               // 8 slots of 32 bits
	FormatTDM512               // 16 slots of 32 bits
)

// Config controls non-hardware behaviour. All fields are optional.
type Config struct {
	// Address defaults to 0x10 if zero.
	Address uint16
	Format  Format
}

// Device wraps an I2C connection to an AK4613.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg  Config
	w    [2]byte
	r    [1]byte
	rate uint32
}

// New creates a new AK4613 connection. The I2C bus must already be configured.
// This function only creates the Device object; it does not touch the device.
func New(bus drivers.I2C) *Device {
	return &Device{bus: bus, Address: Address}
}

// Configure powers the codec up in the configured data format. Sampling
// speed is set separately by SetSampleRate.
func (d *Device) Configure(cfg Config) error {
	if cfg.Address != 0 {
		d.Address = cfg.Address
	}
	dif, ok := difBits(cfg.Format)
	if !ok {
		return ErrFormat
	}
	d.cfg = cfg
	if err := d.writeReg(regPowerMgmt1, 0); err != nil { // reset
		return err
	}
	if err := d.writeReg(regControl1, dif); err != nil {
		return err
	}
	if err := d.writeReg(regPowerMgmt2, pm2AllDAC); err != nil {
		return err
	}
	if err := d.writeReg(regPowerMgmt3, pm3AllADC); err != nil {
		return err
	}
	return d.writeReg(regPowerMgmt1, pm1PowerUp)
}

// SetSampleRate selects the sampling speed for rate. The codec derives its
// internal clocks from the incoming word select, so only the speed range and
// the master-clock ratio are programmed.
func (d *Device) SetSampleRate(rate uint32) error {
	dfs, cks, ok := speedBits(rate)
	if !ok {
		return ErrUnsupportedRate
	}
	if err := d.updateReg(regControl2, ctl2DFSMask|ctl2CKSMask, dfs|cks); err != nil {
		return err
	}
	d.rate = rate
	return nil
}

// Rate is the last rate applied successfully, 0 if none.
func (d *Device) Rate() uint32 { return d.rate }

// PowerDown puts the codec in reset.
func (d *Device) PowerDown() error {
	return d.writeReg(regPowerMgmt1, 0)
}

// speedBits maps a sample rate onto DFS (speed range) and CKS (MCLK ratio).
func speedBits(rate uint32) (dfs, cks byte, ok bool) {
	switch rate {
	case 8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000:
		return dfsNormal, cks512, true
	case 64000, 88200, 96000:
		return dfsDouble, cks256, true
	case 176400, 192000:
		return dfsQuad, cks128, true
	}
	return 0, 0, false
}

func difBits(f Format) (byte, bool) {
	switch f {
	case FormatI2S:
		return difI2S, true
	case FormatTDM128:
		return difTDM128, true
	case FormatTDM256:
		return difTDM256, true
	case FormatTDM512:
		return difTDM512, true
	}
	return 0, false
}
