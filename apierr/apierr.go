// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package apierr is the typed error taxonomy the HTTP layer uses to
// turn a pipeline failure into a stable wire document and status
// code, following the teacher's writeErrorResponse pattern.
package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind is a stable wire vocabulary identifying the class of failure.
type Kind string

const (
	InvalidRequest       Kind = "InvalidRequest"
	UnsupportedOperation Kind = "UnsupportedOperation"
	ShapeMismatch        Kind = "ShapeMismatch"
	InvalidSelection     Kind = "InvalidSelection"
	InvalidMissing       Kind = "InvalidMissing"
	ShuffleSizeMismatch  Kind = "ShuffleSizeMismatch"
	S3Unauthorized       Kind = "S3Unauthorized"
	S3NotFound           Kind = "S3NotFound"
	MemoryLimitExceeded  Kind = "MemoryLimitExceeded"
	DecompressionFailed  Kind = "DecompressionFailed"
	FilterFailed         Kind = "FilterFailed"
	EmptyReduction       Kind = "EmptyReduction"
	S3Transport          Kind = "S3Transport"
	InternalError        Kind = "InternalError"
)

// status is the HTTP status code each Kind maps to.
var status = map[Kind]int{
	InvalidRequest:       http.StatusBadRequest,
	UnsupportedOperation: http.StatusBadRequest,
	ShapeMismatch:        http.StatusBadRequest,
	InvalidSelection:     http.StatusBadRequest,
	InvalidMissing:       http.StatusBadRequest,
	ShuffleSizeMismatch:  http.StatusBadRequest,
	S3Unauthorized:       http.StatusUnauthorized,
	S3NotFound:           http.StatusNotFound,
	MemoryLimitExceeded:  http.StatusInsufficientStorage,
	DecompressionFailed:  http.StatusBadRequest,
	FilterFailed:         http.StatusBadRequest,
	EmptyReduction:       http.StatusBadRequest,
	S3Transport:          http.StatusBadGateway,
	InternalError:        http.StatusInternalServerError,
}

// Error is a request-scoped failure carrying a Kind and a
// human-readable message. It satisfies the error interface.
type Error struct {
	Kind    Kind   `json:"error"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// New constructs an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Status returns the HTTP status code for e's Kind. Unrecognized
// kinds (shouldn't happen; defensive against typos) map to 500.
func (e *Error) Status() int {
	if s, ok := status[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// As converts any error into an *Error, defaulting to InternalError
// when err does not already carry a Kind.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return New(InternalError, err.Error())
}

// WriteTo serializes e as the response body and sets the status
// code and content type on w. requestID, if non-empty, is included
// so operators can correlate a client-visible error with server logs
// without exposing any credentials.
func (e *Error) WriteTo(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	body := struct {
		Error     Kind   `json:"error"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	}{e.Kind, e.Message, requestID}
	_ = json.NewEncoder(w).Encode(body)
}
