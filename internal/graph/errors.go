package graph

import (
	"errors"
	"fmt"
)

// GraphError represents a failed operation against FalkorDB
type GraphError struct {
	Op  string
	Err error
}

// Error returns the error message
func (e *GraphError) Error() string {
	return fmt.Sprintf("graph %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying driver error
func (e *GraphError) Unwrap() error {
	return e.Err
}

// IsGraphError checks whether an error is a graph infrastructure failure
func IsGraphError(err error) bool {
	var graphErr *GraphError
	return errors.As(err, &graphErr)
}

func opError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &GraphError{Op: op, Err: err}
}
