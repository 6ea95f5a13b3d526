package process

import "errors"

// RetryableError marks a processing failure that should be retried later.
// Its message is the message of the wrapped error.
type RetryableError struct {
	TrendID int64
	Err     error
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err wraps a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

func retryable(trendID int64, err error) error {
	return &RetryableError{TrendID: trendID, Err: err}
}
