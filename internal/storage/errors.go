package storage

import (
	"errors"
	"fmt"
)

var (
	ErrContextNotAvailable = errors.New("storage context not available")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrSaveFailed          = errors.New("save failed")
	ErrDeleteFailed        = errors.New("delete failed")
	ErrNotFound            = errors.New("transaction not found")
)

// Error 单次存储调用的错误，Kind 为上面的哨兵错误之一
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("storage %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap 同时暴露错误类别与底层原因，便于 errors.Is 判断
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}
