package necsimgo

import "github.com/pkg/errors"

// ErrorKind classifies a simulation error per the error-handling design.
type ErrorKind uint8

const (
	// ConfigurationError covers unknown algorithm/scenario/partitioning
	// values, contradictory options, and invalid numeric bounds.
	ConfigurationError ErrorKind = iota
	// DispersalContractError covers dispersal-matrix contract violations:
	// dimension mismatch, zero outgoing weight from a habitable source,
	// nonzero weight from a non-habitable source, negative entries.
	DispersalContractError
	// HabitatContractError covers zero-capacity habitat or a habitable
	// location with zero turnover.
	HabitatContractError
	// IOError covers missing map files and unwritable event-log
	// directories.
	IOError
	// ResumeInconsistencyError covers a resumed lineage landing on an
	// illegal location or slot.
	ResumeInconsistencyError
	// ExecutionError covers a partition-thread panic aborting the run.
	ExecutionError
)

func (k ErrorKind) String() string {
	switch k {
	case ConfigurationError:
		return "configuration"
	case DispersalContractError:
		return "dispersal contract"
	case HabitatContractError:
		return "habitat contract"
	case IOError:
		return "I/O"
	case ResumeInconsistencyError:
		return "resume inconsistency"
	case ExecutionError:
		return "execution"
	default:
		return "unknown"
	}
}

// SimError is a typed, wrapped error carrying the ErrorKind it belongs to.
type SimError struct {
	Kind ErrorKind
	err  error
}

func (e *SimError) Error() string { return e.Kind.String() + ": " + e.err.Error() }

func (e *SimError) Unwrap() error { return e.err }

// NewSimError wraps msg/args with errors.Errorf under the given kind.
func NewSimError(kind ErrorKind, format string, args ...interface{}) *SimError {
	return &SimError{Kind: kind, err: errors.Errorf(format, args...)}
}

// WrapSimError wraps an existing error with context under the given kind.
func WrapSimError(kind ErrorKind, err error, msg string) *SimError {
	if err == nil {
		return nil
	}
	return &SimError{Kind: kind, err: errors.Wrap(err, msg)}
}

// Parametrized error message formats.
const (
	InvalidFloatParameterError  = "invalid %s %f: %s"
	InvalidIntParameterError    = "invalid %s %d: %s"
	InvalidUint32ParameterError = "invalid %s %d: %s"
	OutOfExtentError            = "location %s is outside habitat extent %dx%d"
	NonHabitableLocationError   = "location %s has zero capacity"
	DimensionMismatchError      = "dispersal matrix has %d rows, expected %d for extent %dx%d"
	ZeroOutgoingWeightError     = "habitable source %s has no positive outgoing dispersal weight"
	NonzeroFromNonHabitableError = "non-habitable source %s has nonzero dispersal weight to %s"
	NegativeWeightError         = "dispersal weight from %s to %s is negative: %f"
	ZeroTurnoverError           = "habitable location %s has zero turnover rate"
)
