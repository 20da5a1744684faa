package errcode

// Code is a stable, caller-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Permanent: the combination is not implemented on this hardware generation.
	NotSupported Code = "not_supported"
	// Permanent: out-of-range or illegal value.
	InvalidArgument Code = "invalid_argument"

	// Try again later.
	Busy     Code = "busy"
	Conflict Code = "conflict"

	// Bounded hardware-idle poll exceeded.
	Timeout Code = "timeout"

	// Routing.
	Unroutable         Code = "unroutable"
	InvalidCombination Code = "invalid_combination"

	// Clock planning.
	UnsupportedRate Code = "unsupported_rate"

	// Reservations.
	RangeInvalid Code = "range_invalid"
	Exhausted    Code = "exhausted"

	Error Code = "error" // generic fallback
)

// E wraps a Code with the failing operation and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Is lets errors.Is(err, errcode.Busy) match a wrapped code.
func (e *E) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.C
}

// New returns an *E for op with code c.
func New(op string, c Code, msg string) *E {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap keeps the code of err (if any) and records op as the failing step.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: Of(err), Op: op, Err: err}
}

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}

// Retryable reports whether the caller may try the same request later.
func Retryable(err error) bool {
	switch Of(err) {
	case Busy, Conflict:
		return true
	}
	return false
}
