package config

// Option strings for known boards. Key: board name as given on the command line.
const (
	optsSalvator = `gen=gen2 play.ssi=0 play.master=1 cap.ssi=1 cap.master=0 cap.share=0`
	optsULCB     = `gen=gen2 play.ssi=0-2 play.mode=multichannel play.voices=6 play.bits=32 cap.ssi=auto`
	optsLager    = `gen=gen1 play.ssi=0 cap.ssi=1 cap.master=0 cap.share=0 play.rate_max=96k cap.rate_max=96k`
)

var boardOptions = map[string]string{
	"salvator-x": optsSalvator,
	"ulcb":       optsULCB,
	"lager":      optsLager,
}

// BoardLookup resolves a board name to its option string. Tests may replace it.
var BoardLookup = func(board string) (string, bool) {
	s, ok := boardOptions[board]
	return s, ok
}

// ForBoard parses the board's options followed by extra, so extra wins.
func ForBoard(board, extra string) (Config, error) {
	base, _ := BoardLookup(board)
	return Parse(base + " " + extra)
}
