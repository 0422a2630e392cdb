package errors

import "errors"

var (
	ErrConfig            = errors.New("invalid job configuration")
	ErrTopology          = errors.New("invalid participant topology")
	ErrUnknownDataset    = errors.New("unknown dataset")
	ErrChannel           = errors.New("variable channel failure")
	ErrProcess           = errors.New("training process failure")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAlreadyStored     = errors.New("task entry already stored")
	ErrNotFound          = errors.New("task entry not found")
	ErrUnknownOperation  = errors.New("unknown operation")
	ErrMissingValue      = errors.New("missing value")
)

// Kind names the error category recorded in the task store.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig):
		return "ConfigError"
	case errors.Is(err, ErrTopology):
		return "TopologyError"
	case errors.Is(err, ErrUnknownDataset):
		return "UnknownDatasetError"
	case errors.Is(err, ErrChannel):
		return "ChannelError"
	case errors.Is(err, ErrProcess):
		return "ProcessError"
	default:
		return "Error"
	}
}
