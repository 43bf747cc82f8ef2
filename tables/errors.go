package tables

import "fmt"

// Code is a stable, exit-code-like error taxonomy shared by the column
// tables, the sorter, and the simplifier. It is the Go analogue of the
// MSP_ERR_* enum in the C implementation this package is grounded on: a
// small closed set of causes that callers can switch on, rather than an
// open string-keyed error hierarchy.
type Code int

const (
	// Generic covers failures that do not fit a more specific code.
	Generic Code = iota
	// NoMemory is returned when a growable column or pool cannot expand.
	NoMemory
	// BadParam is returned for malformed constructor or row arguments:
	// null required columns, zero growth increments, too few samples.
	BadParam
	// OutOfBounds is returned when a row references a node or site id
	// beyond the current table extent.
	OutOfBounds
	// BadSamples is returned when a requested sample node lacks the
	// IS_SAMPLE flag.
	BadSamples
	// DuplicateSample is returned when a sample id is repeated.
	DuplicateSample
	// RecordsNotTimeSorted is returned when edgeset parents are not
	// presented to the simplifier in non-decreasing time order.
	RecordsNotTimeSorted
)

func (c Code) String() string {
	switch c {
	case NoMemory:
		return "NoMemory"
	case BadParam:
		return "BadParam"
	case OutOfBounds:
		return "OutOfBounds"
	case BadSamples:
		return "BadSamples"
	case DuplicateSample:
		return "DuplicateSample"
	case RecordsNotTimeSorted:
		return "RecordsNotTimeSorted"
	case Generic:
		return "Generic"
	default:
		return "UnknownCode"
	}
}

// Error is the error type at the root of every error constructed by this
// module's exported operations; it may reach the caller wrapped by
// github.com/pkg/errors, so use CodeOf to recover its Code. Op names the failing operation (e.g. "NodeTable.AddRow") the way
// the C API's function name identified the failure site.
type Error struct {
	Code Code
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Msg)
}

// E constructs an *Error. It is the constructor used throughout tables and
// simplify instead of fmt.Errorf, so that callers can recover the stable
// Code via CodeOf.
func E(code Code, op string, msg string) error {
	return &Error{Code: code, Op: op, Msg: msg}
}

// CodeOf returns the Code carried by err, or Generic if err is nil or was
// not constructed via E. err may be wrapped one or more times by
// github.com/pkg/errors (Wrap/Wrapf); CodeOf walks the Cause() chain to
// find the underlying *Error the way callers that only want the stable
// code, not the call-site trail, expect to.
func CodeOf(err error) Code {
	for err != nil {
		if te, ok := err.(*Error); ok {
			return te.Code
		}
		causer, ok := err.(interface{ Cause() error })
		if !ok {
			break
		}
		err = causer.Cause()
	}
	return Generic
}
