package commentary

import "errors"

// ErrInvalidMode is returned for modes other than hourly and adhoc.
var ErrInvalidMode = errors.New("commentary: invalid mode")

// ModelError marks a failure of the model call. It unwraps to the
// underlying error.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string {
	return "commentary model call: " + e.Err.Error()
}

func (e *ModelError) Unwrap() error {
	return e.Err
}
