package model

import "errors"

var ErrInvalidArgument = errors.New("invalid argument")

// ArgumentError reports a missing call argument. Its message is shown to
// the caller verbatim.
type ArgumentError struct {
	Msg string
}

func (e *ArgumentError) Error() string { return e.Msg }

func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// Validate checks the arguments before any cryptographic work. The
// container is checked first so an empty container is always reported as
// such, whatever the payload.
func (a *Arguments) Validate(requireData bool) error {
	if len(a.P12) == 0 {
		return &ArgumentError{Msg: "p12 is empty"}
	}
	if requireData && a.Data == "" {
		return &ArgumentError{Msg: "data is empty"}
	}
	return nil
}
