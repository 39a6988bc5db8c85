package db

import (
	"errors"
	"fmt"
)

var (
	// ErrKeyNotFound indicates the requested key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrIndexNotFound indicates the named index does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrIndexExists indicates an index with the same name already exists.
	ErrIndexExists = errors.New("index already exists")

	// ErrInvalidDefinition indicates an index definition failed validation.
	ErrInvalidDefinition = errors.New("invalid index definition")
)

// Op identifies the storage operation an error originated from.
type Op string

const (
	OpHSet        Op = "hset"
	OpHGetAll     Op = "hgetall"
	OpDel         Op = "del"
	OpCreateIndex Op = "create_index"
	OpDropIndex   Op = "drop_index"
	OpIndexInfo   Op = "index_info"
	OpSearch      Op = "search"
	OpPing        Op = "ping"
)

// Error wraps a backend error with the operation that produced it.
type Error struct {
	Op  Op
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("db %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with op context. Returns nil for a nil err.
func NewError(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}
