package utils

import (
	"errors"

	"lubimyczytac-exporter/internal/types"
)

// ErrorKind maps a driver error onto the label used for recovery metrics
func ErrorKind(err error) string {
	if err == nil {
		return "unknown"
	}
	var nav *types.NavigationError
	switch {
	case errors.As(err, &nav):
		return "navigation"
	case errors.Is(err, types.ErrTimeout):
		return "timeout"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
