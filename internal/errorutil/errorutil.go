package errorutil

import "errors"

// ErrDataIntegrity is a base error type to use for failures that are due to
// unrecoverable data integrity issues.
var ErrDataIntegrity = errors.New("data integrity error")

// ErrMalformedSample is the base error for samples rejected during
// normalization or aggregation. Those samples are skipped and counted,
// they never abort an aggregation.
var ErrMalformedSample = errors.New("malformed sample")
