// Package config parses the audio subsystem's option string:
//
//	gen=gen2 play.ssi=0-2 play.mode=multichannel play.voices=6 cap.ssi=auto
//
// Values may be quoted. Every key is optional; unknown keys are rejected.
package config

import (
	"strconv"
	"strings"

	"github.com/google/shlex"

	"audiopath-go/errcode"
	"audiopath-go/types"
	"audiopath-go/x/mathx"
)

// Stream is the per-direction configuration.
type Stream struct {
	SSI      []int // nil with Auto set: pick by capability
	Auto     bool
	Voices   int
	Master   bool
	Mode     types.OperatingMode
	Transfer types.TransferMode
	Sub      int   // bus-interface sub-lane for the memory route
	Share    []int // channels of the other direction to share pins with
	Bits     int
	RateMin  uint32
	RateMax  uint32

	SRC     bool   // route through a sample-rate converter
	SRCRate uint32 // serial-side rate when converting, 0 = stream rate
	Mix     bool   // follow the converter with a command lane
}

// Config is the validated option set.
type Config struct {
	Gen  types.Generation
	Play Stream
	Cap  Stream
}

// Default returns the configuration used for an empty option string.
func Default() Config {
	s := Stream{
		Voices:  2,
		Master:  true,
		Mode:    types.ModeStereo,
		Bits:    24,
		RateMin: 8000,
		RateMax: 192000,
	}
	play, capt := s, s
	play.SSI = []int{0}
	capt.SSI = []int{1}
	return Config{Gen: types.GenAuto, Play: play, Cap: capt}
}

// Stream returns the configuration for direction d.
func (c *Config) Stream(d types.Direction) *Stream {
	if d == types.Capture {
		return &c.Cap
	}
	return &c.Play
}

// Parse tokenises opts and applies each key=value over Default.
func Parse(opts string) (Config, error) {
	const op = "config.parse"
	cfg := Default()
	fields, err := shlex.Split(opts)
	if err != nil {
		return Config{}, &errcode.E{C: errcode.InvalidArgument, Op: op, Err: err}
	}
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return Config{}, errcode.New(op, errcode.InvalidArgument, "expected key=value, got "+strconv.Quote(f))
		}
		if err := cfg.set(k, v); err != nil {
			return Config{}, errcode.New(op, errcode.InvalidArgument, k+": "+err.Error())
		}
	}
	if err := cfg.validate(); err != nil {
		return Config{}, errcode.New(op, errcode.InvalidArgument, err.Error())
	}
	return cfg, nil
}

type parseError string

func (e parseError) Error() string { return string(e) }

func (c *Config) set(key, val string) error {
	if key == "gen" {
		switch val {
		case "auto", "":
			c.Gen = types.GenAuto
		case "gen1", "1":
			c.Gen = types.Gen1
		case "gen2", "2":
			c.Gen = types.Gen2
		default:
			return parseError("unknown generation " + strconv.Quote(val))
		}
		return nil
	}

	dir, field, ok := strings.Cut(key, ".")
	if !ok {
		return parseError("unknown key")
	}
	var s *Stream
	switch dir {
	case "play":
		s = &c.Play
	case "cap":
		s = &c.Cap
	default:
		return parseError("unknown direction " + strconv.Quote(dir))
	}

	var err error
	switch field {
	case "ssi":
		if val == "auto" {
			s.SSI, s.Auto = nil, true
			return nil
		}
		s.Auto = false
		s.SSI, err = parseList(val)
	case "share":
		s.Share, err = parseList(val)
	case "voices":
		s.Voices, err = strconv.Atoi(val)
	case "bits":
		s.Bits, err = strconv.Atoi(val)
	case "sub":
		s.Sub, err = strconv.Atoi(val)
	case "master":
		s.Master, err = strconv.ParseBool(val)
	case "bus":
		var on bool
		on, err = strconv.ParseBool(val)
		s.Transfer = types.TransferIndependent
		if on {
			s.Transfer = types.TransferBusIF
		}
	case "src":
		s.SRC, err = strconv.ParseBool(val)
	case "mix":
		s.Mix, err = strconv.ParseBool(val)
	case "mode":
		m, known := types.ParseOperatingMode(val)
		if !known {
			return parseError("unknown mode " + strconv.Quote(val))
		}
		s.Mode = m
	case "rate_min":
		s.RateMin, err = parseRate(val)
	case "rate_max":
		s.RateMax, err = parseRate(val)
	case "src_rate":
		s.SRCRate, err = parseRate(val)
	default:
		return parseError("unknown key")
	}
	return err
}

func (c *Config) validate() error {
	for _, d := range []types.Direction{types.Playback, types.Capture} {
		s := c.Stream(d)
		name := d.String() + ": "
		if !s.Auto && len(s.SSI) == 0 {
			return parseError(name + "no channels")
		}
		if s.Voices <= 0 {
			return parseError(name + "voices must be positive")
		}
		if s.Bits != 16 && s.Bits != 24 && s.Bits != 32 {
			return parseError(name + "bits must be 16, 24 or 32")
		}
		if !mathx.Between(s.Sub, 0, 3) {
			return parseError(name + "sub-lane must be 0..3")
		}
		if s.RateMin == 0 || s.RateMin > s.RateMax {
			return parseError(name + "rate range")
		}
		if s.Mix && !s.SRC {
			return parseError(name + "mix needs src")
		}
		if s.Auto && s.Mode == types.ModeMultichannel {
			return parseError(name + "multichannel needs explicit channels")
		}
	}
	return nil
}

// parseList accepts "3", "0,1,2" and "0-2".
func parseList(v string) ([]int, error) {
	if v == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, err
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, err
			}
		}
		if a < 0 || b < a || b > 31 {
			return nil, parseError("bad channel range " + strconv.Quote(part))
		}
		for i := a; i <= b; i++ {
			out = append(out, i)
		}
	}
	return out, nil
}

// parseRate accepts plain Hz or a "k" suffix ("48k", "44.1k").
func parseRate(v string) (uint32, error) {
	if k, ok := strings.CutSuffix(strings.ToLower(v), "k"); ok {
		f, err := strconv.ParseFloat(k, 64)
		if err != nil || f <= 0 {
			return 0, parseError("bad rate " + strconv.Quote(v))
		}
		return uint32(f*1000 + 0.5), nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	return uint32(n), err
}
