package models

import (
	"errors"
	"fmt"
)

var (
	ErrInputShape       = errors.New("input shape")
	ErrInsufficientData = errors.New("insufficient data")
	ErrDataQuality      = errors.New("data quality")
)

// InputShapeError reports malformed request arrays.
type InputShapeError struct {
	Field    string
	Expected int
	Actual   int
	Reason   string
}

func (e *InputShapeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid input %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid input %s: expected length %d, got %d", e.Field, e.Expected, e.Actual)
}

func (e *InputShapeError) Is(target error) bool { return target == ErrInputShape }

// InsufficientDataError reports a data source returning fewer rows than the window needs.
type InsufficientDataError struct {
	Expected int
	Actual   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough data points: expected %d, got %d", e.Expected, e.Actual)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// DataQualityError reports fetched market data that fails sanity checks.
type DataQualityError struct {
	Reason string
}

func (e *DataQualityError) Error() string { return "market data rejected: " + e.Reason }

func (e *DataQualityError) Is(target error) bool { return target == ErrDataQuality }

// IsClientError reports whether err stems from caller input or unusable source data.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInputShape) || errors.Is(err, ErrInsufficientData) || errors.Is(err, ErrDataQuality)
}
