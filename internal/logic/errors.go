package logic

import (
	"errors"
	"fmt"
)

// ErrBadRequest marks errors caused by the caller's input.
var ErrBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %w", ErrBadRequest, err)
}
