package clock

import "audiopath-go/types"

// lookup is the enumerated rate table for a 64-bit frame.
func lookup(gen types.Generation, rate uint32) (Plan, bool) {
	switch gen {
	case types.Gen1:
		return lookupGen1(rate)
	case types.Gen2:
		return lookupGen2(rate)
	}
	return Plan{}, false
}

func lookupGen1(rate uint32) (Plan, bool) {
	switch rate {
	case 8000:
		return Plan{ClockB, 12, 2}, true
	case 11025:
		return Plan{ClockA, 16, 1}, true
	case 16000:
		return Plan{ClockB, 12, 1}, true
	case 22050:
		return Plan{ClockA, 8, 1}, true
	case 32000:
		return Plan{ClockB, 6, 1}, true
	case 44100:
		return Plan{ClockA, 4, 1}, true
	case 48000:
		return Plan{ClockB, 4, 1}, true
	case 88200:
		return Plan{ClockA, 2, 1}, true
	case 96000:
		return Plan{ClockB, 2, 1}, true
	}
	return Plan{}, false
}

func lookupGen2(rate uint32) (Plan, bool) {
	switch rate {
	case 8000:
		return Plan{ClockB, 12, 4}, true
	case 11025:
		return Plan{ClockA, 16, 2}, true
	case 12000:
		return Plan{ClockB, 8, 4}, true
	case 16000:
		return Plan{ClockB, 12, 2}, true
	case 22050:
		return Plan{ClockA, 16, 1}, true
	case 24000:
		return Plan{ClockB, 16, 1}, true
	case 32000:
		return Plan{ClockB, 12, 1}, true
	case 44100:
		return Plan{ClockA, 8, 1}, true
	case 48000:
		return Plan{ClockB, 8, 1}, true
	case 64000:
		return Plan{ClockB, 6, 1}, true
	case 88200:
		return Plan{ClockA, 4, 1}, true
	case 96000:
		return Plan{ClockB, 4, 1}, true
	case 176400:
		return Plan{ClockA, 2, 1}, true
	case 192000:
		return Plan{ClockB, 2, 1}, true
	}
	return Plan{}, false
}

// Rates lists the supported rates on gen in ascending order.
func Rates(gen types.Generation) []uint32 {
	var out []uint32
	for _, r := range []uint32{8000, 11025, 12000, 16000, 22050, 24000, 32000, 44100, 48000, 64000, 88200, 96000, 176400, 192000} {
		if _, ok := lookup(gen, r); ok {
			out = append(out, r)
		}
	}
	return out
}
