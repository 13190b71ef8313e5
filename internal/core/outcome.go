package core

import "fmt"

// OutcomeKind enumerates how a routing or detection step ended.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeNoMatch
	OutcomeUnavailable
	OutcomeSkipped
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the explicit result variant for "no records", "missing
// capability" and "statistics undefined". Callers branch on Kind.
type Outcome struct {
	Kind   OutcomeKind
	Reason string
}

func Ok() Outcome { return Outcome{Kind: OutcomeOK} }

func NoMatch(reason string) Outcome {
	return Outcome{Kind: OutcomeNoMatch, Reason: reason}
}

func Unavailable(reason string) Outcome {
	return Outcome{Kind: OutcomeUnavailable, Reason: reason}
}

func Skipped(reason string) Outcome {
	return Outcome{Kind: OutcomeSkipped, Reason: reason}
}

func (o Outcome) IsOK() bool { return o.Kind == OutcomeOK }

// Err maps the outcome onto the sentinel errors for callers that prefer
// errors.Is. OK and Skipped map to nil.
func (o Outcome) Err() error {
	switch o.Kind {
	case OutcomeNoMatch:
		return fmt.Errorf("%w: %s", ErrNoMatch, o.Reason)
	case OutcomeUnavailable:
		return fmt.Errorf("%w: %s", ErrCapabilityUnavailable, o.Reason)
	default:
		return nil
	}
}
