// Package chaterr classifies failures on the chat delivery and relay paths.
//
// Each kind has a fixed blast radius. Authentication and authorization errors
// end one session with a close code. Transport errors detach one connection.
// Relay publish errors lose durability for one message. Persistence errors
// requeue one record. Broker connection errors restart the consume loop.
package chaterr

import (
	"errors"
)

// Kind names a failure class.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindAuthentication   Kind = "authentication"
	KindAuthorization    Kind = "authorization"
	KindTransport        Kind = "transport"
	KindRelayPublish     Kind = "relay_publish"
	KindPersistence      Kind = "persistence"
	KindBrokerConnection Kind = "broker_connection"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, chaterr.Persistence)
// works for any wrapped persistence failure.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && e.Kind == t.Kind
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the outermost classified kind in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Sentinels for errors.Is checks.
var (
	Authentication   = &Error{Kind: KindAuthentication}
	Authorization    = &Error{Kind: KindAuthorization}
	Transport        = &Error{Kind: KindTransport}
	RelayPublish     = &Error{Kind: KindRelayPublish}
	Persistence      = &Error{Kind: KindPersistence}
	BrokerConnection = &Error{Kind: KindBrokerConnection}
)
