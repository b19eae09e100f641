package domain

// AcquisitionResult is either a value or an AcquisitionError, never both.
type AcquisitionResult[T any] struct {
	value T
	err   *AcquisitionError
}

// Success wraps a successfully acquired value
func Success[T any](value T) AcquisitionResult[T] {
	return AcquisitionResult[T]{value: value}
}

// Failure wraps an acquisition error
func Failure[T any](err *AcquisitionError) AcquisitionResult[T] {
	if err == nil {
		err = NewAcquisitionError(KindExternalFailure, "unknown failure")
	}
	return AcquisitionResult[T]{err: err}
}

// OK reports whether the result holds a value
func (r AcquisitionResult[T]) OK() bool {
	return r.err == nil
}

// Value returns the acquired value and whether it is present
func (r AcquisitionResult[T]) Value() (T, bool) {
	return r.value, r.err == nil
}

// Err returns the failure, or nil on success
func (r AcquisitionResult[T]) Err() *AcquisitionError {
	return r.err
}
