// Package rnodeerr defines the error taxonomy shared by every bridge
// component: a small set of typed kinds plus a substring-matching fallback
// for upstream BLE-stack errors that only ever speak plain strings.
package rnodeerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes a bridge error for callers that need to branch on it
// (a CLI deciding whether to retry, a control API deciding what to report).
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindTimeout     Kind = "timeout"
	KindAuthRequired Kind = "auth_required"
	KindTransport   Kind = "transport"
	KindResource    Kind = "resource"
	KindProtocol    Kind = "protocol"
	KindCancelled   Kind = "cancelled"
)

// BridgeError wraps an underlying error with the operation that failed and
// its classified Kind. It implements Unwrap so errors.Is/As see through it
// to the original cause.
type BridgeError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *BridgeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *BridgeError) Unwrap() error { return e.Err }

// Is allows errors.Is(err, rnodeerr.New(someKind, "", nil)) to match on Kind
// alone, the way code that only cares about the classification wants to.
func (e *BridgeError) Is(target error) bool {
	t, ok := target.(*BridgeError)
	if !ok {
		return false
	}
	if t.Kind == "" {
		return false
	}
	return e.Kind == t.Kind
}

// New builds a BridgeError for the given operation.
func New(kind Kind, op string, err error) *BridgeError {
	return &BridgeError{Kind: kind, Op: op, Err: err}
}

// Sentinel values usable with errors.Is(err, rnodeerr.ErrAuthRequired) etc.
var (
	ErrNotFound     = &BridgeError{Kind: KindNotFound}
	ErrTimeout      = &BridgeError{Kind: KindTimeout}
	ErrAuthRequired = &BridgeError{Kind: KindAuthRequired}
	ErrTransport    = &BridgeError{Kind: KindTransport}
	ErrResource     = &BridgeError{Kind: KindResource}
	ErrProtocol     = &BridgeError{Kind: KindProtocol}
	ErrCancelled    = &BridgeError{Kind: KindCancelled}
)

// authTokens are substrings the platform BLE stack is observed to embed in
// plain-string errors when a characteristic operation requires bonding that
// hasn't happened yet. Matched case-insensitively.
var authTokens = []string{"not paired", "authentication", "bonding", "security"}

// ClassifyAuthFailure reports whether msg looks like a pairing/authentication
// failure reported by the platform BLE stack as bare text, rather than as a
// typed error.
func ClassifyAuthFailure(msg string) bool {
	lower := strings.ToLower(msg)
	for _, tok := range authTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// Classify normalizes an arbitrary error from the GATT/PTY plumbing into a
// BridgeError tagged with op, preferring context and typed causes over
// string matching, and falling back to ClassifyAuthFailure only when nothing
// more specific is available.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var be *BridgeError
	if errors.As(err, &be) {
		return err
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(KindTimeout, op, err)
	case errors.Is(err, context.Canceled):
		return New(KindCancelled, op, err)
	case ClassifyAuthFailure(err.Error()):
		return New(KindAuthRequired, op, err)
	default:
		return New(KindTransport, op, err)
	}
}
