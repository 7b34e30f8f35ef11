// Package errors provides the structured error type used across ropetpl and
// a collector that aggregates per-file failures for batch commands.
package errors

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// FileError records a failure attributed to one template file.
type FileError struct {
	File      string
	Err       error
	Timestamp time.Time
}

// Error implements the error interface
func (fe *FileError) Error() string {
	return fmt.Sprintf("%s: %v", fe.File, fe.Err)
}

// Unwrap returns the wrapped error
func (fe *FileError) Unwrap() error {
	return fe.Err
}

// ErrorCollector collects errors reported by concurrent workers.
type ErrorCollector struct {
	fileErrors []FileError
	errors     []error
	mutex      sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		fileErrors: make([]FileError, 0),
		errors:     make([]error, 0),
	}
}

// AddFile records an error for a specific file. Nil errors are ignored.
func (ec *ErrorCollector) AddFile(file string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.fileErrors = append(ec.fileErrors, FileError{File: file, Err: err, Timestamp: time.Now()})
}

// AddError adds a general error to the collector
func (ec *ErrorCollector) AddError(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = append(ec.errors, err)
}

// GetFileErrors returns the file errors sorted by file name.
func (ec *ErrorCollector) GetFileErrors() []FileError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]FileError, len(ec.fileErrors))
	copy(result, ec.fileErrors)
	sort.SliceStable(result, func(i, j int) bool { return result[i].File < result[j].File })
	return result
}

// GetAllErrors returns all collected errors (file and general)
func (ec *ErrorCollector) GetAllErrors() []error {
	files := ec.GetFileErrors()

	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	allErrors := make([]error, 0, len(files)+len(ec.errors))
	for i := range files {
		allErrors = append(allErrors, &files[i])
	}
	allErrors = append(allErrors, ec.errors...)

	return allErrors
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.fileErrors) > 0 || len(ec.errors) > 0
}

// Count returns the number of collected errors.
func (ec *ErrorCollector) Count() int {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.fileErrors) + len(ec.errors)
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.fileErrors = ec.fileErrors[:0]
	ec.errors = ec.errors[:0]
}
