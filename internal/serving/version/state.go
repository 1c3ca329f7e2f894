// Package version implements the per-(model, version) lifecycle state machine.
package version

import (
	"fmt"

	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// State is one node of a Version Record's lifecycle.
type State int

const (
	Discovered State = iota
	Loading
	Available
	Unloading
	End
	Failed
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "DISCOVERED"
	case Loading:
		return "LOADING"
	case Available:
		return "AVAILABLE"
	case Unloading:
		return "UNLOADING"
	case End:
		return "END"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode is the taxonomy recorded on a Version Record alongside its State.
// It is distinct from pkg/errors.ErrorCode: this one only ever labels a
// record's last transition, it is never itself returned to a caller.
type ErrorCode int

const (
	OK ErrorCode = iota
	IOError
	LoadFailed
	UnloadPending
	Internal
	DeadlineExceeded
	NotFound
	InvalidInput
)

func (c ErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case IOError:
		return "IO_ERROR"
	case LoadFailed:
		return "LOAD_FAILED"
	case UnloadPending:
		return "UNLOAD_PENDING"
	case Internal:
		return "INTERNAL"
	case DeadlineExceeded:
		return "DEADLINE_EXCEEDED"
	case NotFound:
		return "NOT_FOUND"
	case InvalidInput:
		return "INVALID_INPUT"
	default:
		return "UNKNOWN"
	}
}

// ToAppError maps a taxonomy ErrorCode to the platform's wire-level error type.
func (c ErrorCode) ToAppError(message string) *errors.AppError {
	switch c {
	case NotFound:
		return errors.NotFound(message)
	case InvalidInput:
		return errors.InvalidParam(message)
	case LoadFailed:
		return errors.LoadFailed(message)
	case UnloadPending:
		return errors.UnloadPending(message)
	case DeadlineExceeded:
		return errors.DeadlineExceeded(message)
	default:
		return errors.Internal(message)
	}
}

// edge identifies one permitted (from, to) transition.
type edge struct {
	from State
	to   State
}

// transitionTable enumerates every edge allowed by §4.4. Anything not listed
// here is rejected by Transition.
var transitionTable = map[edge]struct{}{
	{Discovered, Loading}:  {},
	{Loading, Available}:   {},
	{Loading, Failed}:      {},
	{Available, Unloading}: {},
	{Unloading, End}:       {},
	{Failed, Loading}:      {},
	{Failed, End}:          {},
	{Available, Loading}:   {}, // reload on content change
}

// errMessageTable is the static (state, error_code) -> error_message mapping
// that clients parsing status responses depend on verbatim.
var errMessageTable = map[State]map[ErrorCode]string{
	Discovered: {OK: "version discovered, awaiting load"},
	Loading:    {OK: "version is being loaded"},
	Available: {
		OK: "version is available",
	},
	Unloading: {OK: "version is being unloaded"},
	End: {
		OK:            "version has ended",
		LoadFailed:    "version ended after a load failure",
		UnloadPending: "version ended pending drain",
	},
	Failed: {
		LoadFailed:       "version failed to load",
		IOError:          "version failed to load: storage I/O error",
		Internal:         "version failed to load: internal error",
		DeadlineExceeded: "version failed to load: deadline exceeded",
	},
}

// Record is the mutable per-(model, version) lifecycle record described in
// §3. EngineHandle is an opaque reference kept by the owner (internal/serving/manager);
// Record itself only tracks the typed handle presence invariant so that
// generic status/serialization code never needs to know the engine's type.
type Record struct {
	Version      int64
	State        State
	ErrorCode    ErrorCode
	ErrorMessage string
	// HasEngine mirrors "engine_handle is present iff state in {AVAILABLE, UNLOADING}" (invariant 2).
	HasEngine bool
}

// NewRecord creates a fresh Version Record in the DISCOVERED state.
func NewRecord(v int64) *Record {
	return &Record{
		Version:      v,
		State:        Discovered,
		ErrorCode:    OK,
		ErrorMessage: ErrorMessage(Discovered, OK),
	}
}

// Transition validates and applies a state change, recomputing ErrorMessage
// from the static table. It returns an error if the edge is not in
// transitionTable; the record is left unmodified on rejection.
func (r *Record) Transition(to State, code ErrorCode) error {
	if _, ok := transitionTable[edge{r.State, to}]; !ok {
		return fmt.Errorf("illegal version state transition %s -> %s", r.State, to)
	}
	r.State = to
	r.ErrorCode = code
	r.ErrorMessage = ErrorMessage(to, code)
	r.HasEngine = to == Available || to == Unloading
	return nil
}

// ErrorMessage returns the canonical, deterministic string for a
// (state, error_code) pair. Unrecognized combinations fall back to a
// generic rendering rather than panicking, since new (state, code) pairs
// may appear as the taxonomy grows.
func ErrorMessage(s State, c ErrorCode) string {
	if byCode, ok := errMessageTable[s]; ok {
		if msg, ok := byCode[c]; ok {
			return msg
		}
	}
	return fmt.Sprintf("%s: %s", s, c)
}
