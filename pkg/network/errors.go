package network

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents transport failures (offline, DNS, reset, timeout).
	ErrorClassNetwork ErrorClass = "network"
)

// FetchError describes a failed network fetch with additional context.
// Transport failures carry StatusCode 0.
type FetchError struct {
	URL        string
	StatusCode int
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s error (status %d): %v", e.URL, e.ErrorClass, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error (status %d)", e.URL, e.ErrorClass, e.StatusCode)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsOffline reports whether err is a transport-level failure, i.e. the
// network could not be reached at all.
func IsOffline(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.ErrorClass == ErrorClassNetwork
	}
	return false
}

// ClassifyStatus maps an HTTP status code to an error class.
// Returns "" for non-error statuses.
func ClassifyStatus(status int) ErrorClass {
	switch {
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}
