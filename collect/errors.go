package collect

import "errors"

var (
	// ErrPrecheckFatal: the storage engine is too old (or unreadable). No
	// country was attempted.
	ErrPrecheckFatal = errors.New("collect: precheck failed")
	// ErrRunFatal: durable state failed mid-run. The report holds what was
	// committed before the failure.
	ErrRunFatal = errors.New("collect: run aborted")
	// ErrRunInProgress: another Collect call on the same Collector is running.
	ErrRunInProgress = errors.New("collect: a run is already in progress")

	ErrUnknownCountry = errors.New("collect: unknown country")
	ErrInvalidMode    = errors.New("collect: invalid mode")
)
