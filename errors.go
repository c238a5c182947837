package sharpiso

import "github.com/pkg/errors"

// InternalInconsistencyError is fatal: it means a slot or cube reference
// that was required to exist did not. It always carries the
// offending cube index.
type InternalInconsistencyError struct {
	CubeIndex CubeIndex
	msg       string
}

func (e *InternalInconsistencyError) Error() string {
	return errors.Wrapf(errors.New(e.msg), "internal inconsistency at cube %d", int(e.CubeIndex)).Error()
}

func newInternalInconsistency(cube CubeIndex, msg string) error {
	return &InternalInconsistencyError{CubeIndex: cube, msg: msg}
}

// BadInputError reports a parameter-out-of-range condition detected before
// the pipeline runs, such as a gradient grid whose axis sizes do
// not match the scalar grid's.
type BadInputError struct {
	msg string
}

func (e *BadInputError) Error() string {
	return errors.Wrap(errors.New(e.msg), "bad input").Error()
}

func newBadInput(msg string) error {
	return &BadInputError{msg: msg}
}
