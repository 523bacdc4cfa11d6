package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrInvalidRequest   = errors.New("invalid request")
	ErrNotFound         = errors.New("not found")
	ErrNoCredential     = errors.New("no credential configured")
	ErrTransport        = errors.New("transport failed")
	ErrNoRecipients     = errors.New("no recipients")
	ErrAlreadyFinalized = errors.New("message already finalized")

	// ErrNotImplemented is a transport failure: errors.Is(ErrNotImplemented, ErrTransport) holds.
	ErrNotImplemented error = &TransportError{Message: "channel transport not implemented", notImplemented: true}
)

// Stage names the dispatch step that produced a failure.
type Stage string

const (
	StageRequest    Stage = "request"
	StageLedger     Stage = "ledger"
	StageCredential Stage = "credential"
	StageAddress    Stage = "address"
	StageTransport  Stage = "transport"
)

type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Metadata converts the error into the failure record stored on the message.
func (e *StageError) Metadata() *FailureMetadata {
	md := &FailureMetadata{Stage: e.Stage, Error: e.Err.Error()}
	var te *TransportError
	if errors.As(e.Err, &te) {
		md.Code = te.Code
		md.HTTPStatus = te.HTTPStatus
	}
	return md
}

// TransportError is returned by provider transports for every failed send.
type TransportError struct {
	Provider   string
	HTTPStatus int
	Code       string
	Message    string
	Err        error

	notImplemented bool
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "send failed"
	}
	if e.HTTPStatus != 0 {
		msg = msg + " (http " + strconv.Itoa(e.HTTPStatus) + ")"
	}
	if e.Provider != "" {
		return e.Provider + ": " + msg
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool {
	if target == ErrTransport {
		return true
	}
	if t, ok := target.(*TransportError); ok && t.notImplemented {
		return e.notImplemented
	}
	return false
}

// NotImplemented returns ErrNotImplemented tagged with a provider name.
func NotImplemented(provider string) error {
	return &TransportError{
		Provider:       provider,
		Message:        fmt.Sprintf("%s transport not implemented", provider),
		notImplemented: true,
	}
}
