package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	// ErrorTypeSyntax marks malformed template input.
	ErrorTypeSyntax ErrorType = "syntax"
	// ErrorTypeContract marks a caller bug: out-of-range index, stale handle,
	// malformed range request. Contract errors are raised with panic.
	ErrorTypeContract ErrorType = "contract"
	ErrorTypeConfig   ErrorType = "config"
	ErrorTypeIO       ErrorType = "io"
	ErrorTypeData     ErrorType = "data"
	ErrorTypeInternal ErrorType = "internal"
)

// TplError is a structured error type with context.
type TplError struct {
	Type    ErrorType
	Code    string
	Message string
	Cause   error
	Context map[string]interface{}
	File    string
	Line    int
	Column  int
}

// Error implements the error interface.
func (e *TplError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.File != "" || e.Line > 0 {
		location := e.File
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *TplError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *TplError) Is(target error) bool {
	var t *TplError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *TplError) WithContext(key string, value interface{}) *TplError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithLocation adds file location information.
func (e *TplError) WithLocation(file string, line, column int) *TplError {
	e.File = file
	e.Line = line
	e.Column = column

	return e
}

// WithFile sets the file name, keeping any line/column already recorded.
func (e *TplError) WithFile(file string) *TplError {
	e.File = file

	return e
}

// Error creation functions

// NewSyntaxError creates an error for malformed template input.
func NewSyntaxError(code, message string) *TplError {
	return &TplError{
		Type:    ErrorTypeSyntax,
		Code:    code,
		Message: message,
	}
}

// NewContractError creates a contract violation. Callers panic with it.
func NewContractError(code, message string) *TplError {
	return &TplError{
		Type:    ErrorTypeContract,
		Code:    code,
		Message: message,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *TplError {
	return &TplError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *TplError {
	return &TplError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewDataError creates an error raised while resolving template data.
func NewDataError(code, message string, cause error) *TplError {
	return &TplError{
		Type:    ErrorTypeData,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *TplError {
	return &TplError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Contractf panics with a contract violation. It never returns.
func Contractf(code, format string, args ...interface{}) {
	panic(NewContractError(code, fmt.Sprintf(format, args...)))
}

// IsSyntaxError checks if an error is caused by malformed input.
func IsSyntaxError(err error) bool {
	var te *TplError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeSyntax
	}

	return false
}

// IsContractViolation checks if an error (or a recovered panic value)
// is a contract violation.
func IsContractViolation(v interface{}) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	var te *TplError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeContract
	}

	return false
}

// IsConfigError checks if an error is configuration-related.
func IsConfigError(err error) bool {
	var te *TplError
	if errors.As(err, &te) {
		return te.Type == ErrorTypeConfig
	}

	return false
}

// CodeOf returns the error code of a TplError, or "" for other errors.
func CodeOf(err error) string {
	var te *TplError
	if errors.As(err, &te) {
		return te.Code
	}

	return ""
}

// Common error codes.
const (
	ErrCodeUnclosedDirective = "ERR_UNCLOSED_DIRECTIVE"
	ErrCodeUnbalanced        = "ERR_UNBALANCED_NESTING"
	ErrCodeInvalidCondition  = "ERR_INVALID_CONDITION"
	ErrCodeInvalidStructure  = "ERR_INVALID_IF_STRUCTURE"
	ErrCodeInvalidPath       = "ERR_INVALID_PATH"
	ErrCodeUnknownFilter     = "ERR_UNKNOWN_FILTER"
	ErrCodeMissingValue      = "ERR_MISSING_VALUE"
	ErrCodeStrideMismatch    = "ERR_STRIDE_MISMATCH"
	ErrCodeDuplicateKind     = "ERR_DUPLICATE_KIND"
	ErrCodeInvalidKind       = "ERR_INVALID_KIND"
	ErrCodeConfigInvalid     = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound      = "ERR_FILE_NOT_FOUND"
	ErrCodeInvalidData       = "ERR_INVALID_DATA"
	ErrCodeAlreadyRendered   = "ERR_ALREADY_RENDERED"

	ErrCodeNilHandle       = "ERR_NIL_HANDLE"
	ErrCodeStaleHandle     = "ERR_STALE_HANDLE"
	ErrCodeRangeOutOfSlot  = "ERR_RANGE_OUT_OF_SLOT"
	ErrCodeIndexOutOfRange = "ERR_INDEX_OUT_OF_RANGE"
	ErrCodeDoubleParse     = "ERR_DOUBLE_PARSE"
	ErrCodeAllocFailed     = "ERR_ALLOC_FAILED"
	ErrCodeInternalError   = "ERR_INTERNAL"
	ErrCodeMultiple        = "ERR_MULTIPLE_ERRORS"
)

// Position converts a byte offset into source to a 1-based line and
// column. Columns count bytes.
func Position(source string, offset int) (int, int) {
	offset = min(max(offset, 0), len(source))
	line := 1 + strings.Count(source[:offset], "\n")
	col := offset + 1
	if i := strings.LastIndexByte(source[:offset], '\n'); i >= 0 {
		col = offset - i
	}
	return line, col
}

// Located fills Line and Column from a byte offset into source.
func (e *TplError) Located(source string, offset int) *TplError {
	if offset < 0 || offset > len(source) {
		return e
	}
	e.Line, e.Column = Position(source, offset)

	return e
}
