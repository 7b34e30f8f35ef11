package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps err in a TplError of the given type, keeping the location of
// an inner TplError so the outer message still points at the source.
func Wrap(err error, errType ErrorType, code, message string) *TplError {
	if err == nil {
		return nil
	}

	var te *TplError
	if errors.As(err, &te) {
		return &TplError{
			Type:    errType,
			Code:    code,
			Message: message,
			Cause:   te,
			Context: te.Context,
			File:    te.File,
			Line:    te.Line,
			Column:  te.Column,
		}
	}

	return &TplError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as an I/O error
func WrapIO(err error, code, message string) *TplError {
	return Wrap(err, ErrorTypeIO, code, message)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *TplError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapData wraps an error raised while loading or resolving data.
func WrapData(err error, code, message string) *TplError {
	return Wrap(err, ErrorTypeData, code, message)
}

// FormatError formats an error for user display
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// GetErrorContext flattens a TplError into key/value pairs suitable for
// structured logging.
func GetErrorContext(err error) map[string]interface{} {
	var te *TplError
	if !errors.As(err, &te) {
		return map[string]interface{}{
			"message": err.Error(),
			"type":    "unknown",
		}
	}

	context := make(map[string]interface{}, len(te.Context)+5)
	for k, v := range te.Context {
		context[k] = v
	}
	if te.File != "" {
		context["file"] = te.File
	}
	if te.Line > 0 {
		context["line"] = te.Line
		context["column"] = te.Column
	}
	context["type"] = string(te.Type)
	context["code"] = te.Code
	return context
}

// HasErrorCode reports whether any TplError in err's chain carries code.
func HasErrorCode(err error, code string) bool {
	for err != nil {
		var te *TplError
		if !errors.As(err, &te) {
			return false
		}
		if te.Code == code {
			return true
		}
		err = te.Cause
	}
	return false
}

// ExtractCause returns the innermost error of a TplError chain.
func ExtractCause(err error) error {
	for err != nil {
		var te *TplError
		if !errors.As(err, &te) {
			return err
		}
		if te.Cause == nil {
			return te
		}
		err = te.Cause
	}
	return nil
}

// CombineErrors folds errs into one error. Nil entries are dropped; a single
// remaining error is returned unchanged.
func CombineErrors(errs ...error) error {
	var nonNil []error
	for _, err := range errs {
		if err != nil {
			nonNil = append(nonNil, err)
		}
	}
	switch len(nonNil) {
	case 0:
		return nil
	case 1:
		return nonNil[0]
	}

	messages := make([]string, len(nonNil))
	for i, err := range nonNil {
		messages[i] = err.Error()
	}

	return &TplError{
		Type:    ErrorTypeInternal,
		Code:    ErrCodeMultiple,
		Message: fmt.Sprintf("multiple errors occurred: %d errors", len(nonNil)),
		Cause:   errors.Join(nonNil...),
		Context: map[string]interface{}{
			"error_count": len(nonNil),
			"errors":      messages,
		},
	}
}
