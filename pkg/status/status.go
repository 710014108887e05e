// Package status maps store result codes to Go errors. Every driver failure
// surfaces as an *Error whose numeric Code is preserved end to end, so callers
// branch on the code (for example KeyNotFound) and never on message text.
package status

import (
	"errors"
	"fmt"
)

// Code is a store result code. Negative values originate in the client.
type Code int

const (
	ClientError        Code = -1
	OK                 Code = 0
	ServerError        Code = 1
	KeyNotFound        Code = 2
	GenerationError    Code = 3
	ParameterError     Code = 4
	KeyExists          Code = 5
	BinExists          Code = 6
	ClusterKeyMismatch Code = 7
	ServerMemError     Code = 8
	Timeout            Code = 9
	AlwaysForbidden    Code = 10
	PartitionUnavail   Code = 11
	BinTypeError       Code = 12
	RecordTooBig       Code = 13
	KeyBusy            Code = 14
	ScanAbort          Code = 15
	UnsupportedFeature Code = 16
	BinNotFound        Code = 17
	DeviceOverload     Code = 18
	KeyMismatch        Code = 19
	InvalidNamespace   Code = 20
	NoMoreRecords      Code = 50
	UDFBadResponse     Code = 100
	IndexFound         Code = 200
	IndexNotFound      Code = 201
	IndexOOM           Code = 202
	IndexNotReadable   Code = 203
	IndexGeneric       Code = 204
	QueryAborted       Code = 210
)

var codeText = map[Code]string{
	ClientError:        "client error",
	OK:                 "ok",
	ServerError:        "server error",
	KeyNotFound:        "record not found",
	GenerationError:    "generation mismatch",
	ParameterError:     "invalid parameter",
	KeyExists:          "record exists",
	BinExists:          "bin exists",
	ClusterKeyMismatch: "cluster key mismatch",
	ServerMemError:     "server out of memory",
	Timeout:            "timeout",
	AlwaysForbidden:    "operation forbidden",
	PartitionUnavail:   "partition unavailable",
	BinTypeError:       "bin type error",
	RecordTooBig:       "record too big",
	KeyBusy:            "record busy",
	ScanAbort:          "scan aborted",
	UnsupportedFeature: "unsupported feature",
	BinNotFound:        "bin not found",
	DeviceOverload:     "device overload",
	KeyMismatch:        "key mismatch",
	InvalidNamespace:   "invalid namespace",
	NoMoreRecords:      "no more records",
	UDFBadResponse:     "udf bad response",
	IndexFound:         "index already exists",
	IndexNotFound:      "index not found",
	IndexOOM:           "index out of memory",
	IndexNotReadable:   "index not readable",
	IndexGeneric:       "index error",
	QueryAborted:       "query aborted",
}

// String returns the short description of the code.
func (c Code) String() string {
	if text, ok := codeText[c]; ok {
		return text
	}
	return fmt.Sprintf("status %d", int(c))
}

// Known reports whether c is one of the enumerated codes.
func (c Code) Known() bool {
	_, ok := codeText[c]
	return ok
}

// Retryable reports whether the code describes a transient condition.
func (c Code) Retryable() bool {
	switch c {
	case Timeout, KeyBusy, DeviceOverload, ServerMemError, PartitionUnavail:
		return true
	}
	return false
}

// Error carries a store result code together with the driver's message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	return fmt.Sprintf("aerospike: %s (code %d)", msg, int(e.Code))
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// Retryable reports whether the error should be considered transient.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Code.Retryable()
}

var (
	// ErrKeyNotFound matches errors reporting a missing record.
	ErrKeyNotFound = &Error{Code: KeyNotFound}
	// ErrKeyExists matches errors reporting a create on an existing record.
	ErrKeyExists = &Error{Code: KeyExists}
	// ErrGeneration matches optimistic concurrency failures.
	ErrGeneration = &Error{Code: GenerationError}
	// ErrTimeout matches timeouts reported by the driver.
	ErrTimeout = &Error{Code: Timeout}
	// ErrIndexNotFound matches queries or drops against a missing index.
	ErrIndexNotFound = &Error{Code: IndexNotFound}
)

// New constructs an *Error. An empty message falls back to the code text.
func New(code Code, message string) *Error {
	if message == "" {
		message = code.String()
	}
	return &Error{Code: code, Message: message}
}

// Newf constructs an *Error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// CodeOf extracts the result code carried by err. A nil error is OK and an
// error without a code is ClientError.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ClientError
}

// IsNotFound reports whether err carries KeyNotFound.
func IsNotFound(err error) bool {
	return CodeOf(err) == KeyNotFound
}

// IsRetryable reports whether err carries a transient code.
func IsRetryable(err error) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return false
}
