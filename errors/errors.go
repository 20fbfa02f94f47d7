package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"go.vocdoni.io/dvote/log"
)

// Error is used by handler functions to wrap errors, assigning a unique error
// code and also specifying which HTTP status should be used.
type Error struct {
	Err        error  // Original error
	Code       int    // Error code
	HTTPstatus int    // HTTP status code to return
	LogLevel   string // Log level for this error (defaults by HTTP status)
}

// MarshalJSON returns a JSON containing Err.Error() and Code. Field HTTPstatus
// is ignored.
//
// Example output: {"error":"invalid id or password","code":40001}
func (e Error) MarshalJSON() ([]byte, error) {
	// json.Marshal doesn't call Err.Error(), so the string is copied here
	return json.Marshal(
		struct {
			Error string `json:"error"`
			Code  int    `json:"code"`
		}{
			Error: e.Err.Error(),
			Code:  e.Code,
		})
}

// Error returns the message contained inside the Error.
func (e Error) Error() string {
	return e.Err.Error()
}

// Unwrap gives errors.Is and errors.As access to the wrapped error, so a
// storage sentinel attached with WithErr can still be matched.
func (e Error) Unwrap() error {
	return e.Err
}

// Write serializes a JSON msg using Error.Err and Error.Code and writes it
// with Error.HTTPstatus. It also logs the error with the appropriate level.
func (e Error) Write(w http.ResponseWriter) {
	msg, err := json.Marshal(e)
	if err != nil {
		log.Warn(err)
		http.Error(w, "marshal failed", http.StatusInternalServerError)
		return
	}
	pc, file, line, _ := runtime.Caller(1)
	e.log(runtime.FuncForPC(pc).Name(), file, line)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(e.HTTPstatus)
	if _, err := w.Write(append(msg, '\n')); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// log reports the error. 5xx errors are always logged at error level with
// their location, the rest only when the logger runs at debug level.
func (e Error) log(caller, file string, line int) {
	if e.HTTPstatus >= http.StatusInternalServerError {
		log.Errorw(e.Err, fmt.Sprintf("API error response [%d]: %s (code: %d, caller: %s, file: %s:%d)",
			e.HTTPstatus, e.Error(), e.Code, caller, file, line))
		return
	}
	if log.Level() != log.LogLevelDebug {
		return
	}
	errMsg := fmt.Sprintf("API error response [%d]: %s (code: %d, caller: %s)",
		e.HTTPstatus, e.Error(), e.Code, caller)
	switch e.LogLevel {
	case "info":
		log.Infow(errMsg)
	case "warn":
		log.Warnw(errMsg)
	default:
		log.Debugw(errMsg)
	}
}

// with returns a copy of Error replacing Err.
func (e Error) with(err error) Error {
	e.Err = err
	return e
}

// Withf returns a copy of Error with the Sprintf formatted string appended at
// the end of e.Err
func (e Error) Withf(format string, args ...any) Error {
	return e.with(fmt.Errorf("%w: %v", e.Err, fmt.Sprintf(format, args...)))
}

// With returns a copy of Error with the string appended at the end of e.Err
func (e Error) With(s string) Error {
	return e.with(fmt.Errorf("%w: %v", e.Err, s))
}

// WithErr returns a copy of Error wrapping both e.Err and err, so either can
// be matched with errors.Is.
func (e Error) WithErr(err error) Error {
	return e.with(fmt.Errorf("%w: %w", e.Err, err))
}

// WithLogLevel returns a copy of Error with the specified log level
func (e Error) WithLogLevel(level string) Error {
	e.LogLevel = level
	return e
}
