package stats

import "strconv"

// Category selects which pair of Record fields a frame is accounted to.
type Category uint8

const (
	Pass Category = iota
	Drop
	Bad
	Match
	Fwd
)

// Categories lists every category in Record field order.
var Categories = [...]Category{Pass, Drop, Bad, Match, Fwd}

func (c Category) String() string {
	switch c {
	case Pass:
		return "pass"
	case Drop:
		return "drop"
	case Bad:
		return "bad"
	case Match:
		return "match"
	case Fwd:
		return "fwd"
	}
	return "category(" + strconv.Itoa(int(c)) + ")"
}

// Verdict is the XDP action returned to the driver.
type Verdict uint32

const (
	VerdictAborted Verdict = iota
	VerdictDrop
	VerdictPass
	VerdictTx
	VerdictRedirect
)

func (v Verdict) String() string {
	switch v {
	case VerdictAborted:
		return "aborted"
	case VerdictDrop:
		return "drop"
	case VerdictPass:
		return "pass"
	case VerdictTx:
		return "tx"
	case VerdictRedirect:
		return "redirect"
	}
	return "unknown"
}
