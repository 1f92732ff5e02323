package models

import "errors"

// Error taxonomy for the pipeline. Callers wrap these with fmt.Errorf("%w: ...")
// and match with errors.Is.
var (
	// ErrData marks malformed or missing input data.
	ErrData = errors.New("data error")

	// ErrConfiguration marks an invalid run configuration and aborts the run.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNumeric marks a degenerate numeric condition (zero variance,
	// singular design matrix). It aborts only the affected diagnostic.
	ErrNumeric = errors.New("numeric error")
)
