package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// FetchError indicates a network-level or non-2xx failure for one URL.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError indicates the fetched document did not yield an expected field.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ConfigError is fatal: the run cannot proceed without the brand tree.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Errorf("configuration: %w", e.Err).Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PersistError aborts the run; continuing past a failed append would lose
// rows silently.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Errorf("persistence: %w", e.Err).Error()
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// errorTypeLabel maps an error to its metrics label.
func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		switch {
		case fetchErr.Status == http.StatusForbidden:
			return "forbidden"
		case fetchErr.Status == http.StatusNotFound:
			return "not_found"
		case fetchErr.Status == http.StatusTooManyRequests:
			return "rate_limited"
		case fetchErr.Status >= http.StatusInternalServerError:
			return "server_error"
		case isTimeout(fetchErr.Err):
			return "timeout"
		case isConnection(fetchErr.Err):
			return "connection"
		}
		return "fetch"
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return "config"
	}
	var persistErr *PersistError
	if errors.As(err, &persistErr) {
		return "persist"
	}
	return "other"
}

// isTransient reports whether a failed fetch is worth retrying. End-of-catalog
// style failures (404, 403, malformed responses) are not.
func isTransient(err error) bool {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	if fetchErr.Status == http.StatusTooManyRequests {
		return true
	}
	if fetchErr.Status >= http.StatusInternalServerError {
		return true
	}
	if fetchErr.Status != 0 {
		return false
	}
	return isTimeout(fetchErr.Err) || isConnection(fetchErr.Err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnection(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
