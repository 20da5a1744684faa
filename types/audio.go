package types

// ---- Hardware generation ----

type Generation uint8

const (
	GenAuto Generation = iota // detect from the SSIU version register
	Gen1
	Gen2
)

func (g Generation) String() string {
	switch g {
	case Gen1:
		return "gen1"
	case Gen2:
		return "gen2"
	default:
		return "auto"
	}
}

// ---- Stream / channel direction ----

// Direction is both the stream direction and the serial-lane direction:
// Playback lanes transmit, Capture lanes receive.
type Direction uint8

const (
	Playback Direction = iota
	Capture
)

func (d Direction) String() string {
	if d == Capture {
		return "capture"
	}
	return "playback"
}

// ---- Channel attributes ----

type Role uint8

const (
	RoleSlave Role = iota
	RoleMaster
)

func (r Role) String() string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

type TransferMode uint8

const (
	TransferIndependent TransferMode = iota // direct SSI data register
	TransferBusIF                           // via the SSIU bus interface
)

type OperatingMode uint8

const (
	ModeMono OperatingMode = iota
	ModeStereo
	ModeMultichannel
	ModeTDM
	ModeTDMExtended
	ModeTDMSplitMono
	ModeTDMSplitStereo
)

var modeNames = [...]string{
	ModeMono:           "mono",
	ModeStereo:         "stereo",
	ModeMultichannel:   "multichannel",
	ModeTDM:            "tdm",
	ModeTDMExtended:    "tdm_ext",
	ModeTDMSplitMono:   "tdm_split_mono",
	ModeTDMSplitStereo: "tdm_split_stereo",
}

func (m OperatingMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "unknown"
}

// ParseOperatingMode maps a short mode name to its value.
func ParseOperatingMode(s string) (OperatingMode, bool) {
	for i, n := range modeNames {
		if n == s {
			return OperatingMode(i), true
		}
	}
	return 0, false
}

// IsTDM reports whether the mode carries more than two slots per frame.
func (m OperatingMode) IsTDM() bool {
	switch m {
	case ModeTDM, ModeTDMExtended, ModeTDMSplitMono, ModeTDMSplitStereo:
		return true
	}
	return false
}

// IsSplit reports whether the mode spreads voices over bus-interface sub-lanes.
func (m OperatingMode) IsSplit() bool {
	return m == ModeTDMSplitMono || m == ModeTDMSplitStereo
}

// ---- Stream lifecycle ----

type StreamParams struct {
	Rate        uint32 // frames per second seen by the framework
	Voices      int    // interleaved channels per frame
	Bits        int    // 16, 24 or 32
	BufferAddr  uint32 // DMA-visible buffer base
	BufferBytes uint32
	PeriodBytes uint32
}

// FrameBytes is the size of one interleaved frame in the stream buffer.
func (p StreamParams) FrameBytes() uint32 {
	b := 4
	if p.Bits == 16 {
		b = 2
	}
	return uint32(b * p.Voices)
}

type TriggerCmd uint8

const (
	TriggerStart TriggerCmd = iota
	TriggerStop
)

// StreamLevel is the coarse lifecycle level published for a stream.
type StreamLevel string

const (
	LevelIdle     StreamLevel = "idle"
	LevelAcquired StreamLevel = "acquired"
	LevelPrepared StreamLevel = "prepared"
	LevelRunning  StreamLevel = "running"
	LevelStopped  StreamLevel = "stopped"
	LevelError    StreamLevel = "error"
)

// StreamState is published (retained) on audio/<direction>/state.
type StreamState struct {
	Level    StreamLevel `json:"level"`
	Status   string      `json:"status"` // short code
	Rate     uint32      `json:"rate,omitempty"`
	Channels []int       `json:"channels,omitempty"`
	TS       int64       `json:"ts_ns"`
}
