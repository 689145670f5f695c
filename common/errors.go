package common

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is returned (wrapped in ConfigError) for malformed parameters
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrEmptyDataset is returned when there is nothing to index, sample or cluster
	ErrEmptyDataset = errors.New("dataset is empty")
	// ErrDimensionMismatch is the sentinel behind DimensionMismatchError
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// ConfigError describes the parameter which made the configuration unusable
type ConfigError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError __
func NewConfigError(field string, value interface{}, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}

// DimensionMismatchError is returned when vector length differs from the dataset dimension
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}
