// Package codec is the external-codec capability used after a clock change.
package codec

import (
	"errors"
	"strconv"

	"audiopath-go/drivers/ak4613"
	"audiopath-go/errcode"
)

// Codec follows the serial clock rate.
type Codec interface {
	SetSampleRate(rate uint32) error
}

// None is a Codec for boards without a cooperating codec.
type None struct{}

func (None) SetSampleRate(uint32) error { return nil }

// AK4613 adapts the AK4613 driver, mapping its errors to error kinds.
type AK4613 struct {
	Dev *ak4613.Device
}

func (a AK4613) SetSampleRate(rate uint32) error {
	const op = "codec.set_rate"
	err := a.Dev.SetSampleRate(rate)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ak4613.ErrUnsupportedRate):
		return errcode.New(op, errcode.NotSupported, strconv.FormatUint(uint64(rate), 10)+" Hz")
	default:
		return &errcode.E{C: errcode.Error, Op: op, Err: err}
	}
}

var (
	_ Codec = None{}
	_ Codec = AK4613{}
)
