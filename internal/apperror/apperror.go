// Copyright (c) historian contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package apperror defines the small closed set of error classifications
// the query-facing edge maps onto transport status codes, per the error
// table in SPEC_FULL.md §7.
package apperror

import "errors"

// Kind is one of a fixed set of error classifications.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidArgument
	KindNotFound
)

// Error wraps an underlying cause with a Kind the transport layer can
// switch on, without depending on any specific RPC framework's status type.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func InvalidArgument(msg string) error {
	return &Error{Kind: KindInvalidArgument, Msg: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf classifies err, defaulting to KindInternal for anything not
// produced by this package.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}
