// Package audit writes audit entries (log_type=audit) through the context
// logger. Entries go to the same sink as the service log and are told apart
// by log_type.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-chat/pkg/log"
)

// Actions.
const (
	ActionRegister   = "user.register"
	ActionLogin      = "user.login"
	ActionCreateRoom = "room.create"
	ActionJoinRoom   = "room.join"
	ActionAttach     = "chat.attach"
	ActionAuthorize  = "chat.authorize"
	ActionDetach     = "chat.detach"
)

// Field constants for audit entries.
const (
	FieldAction  = "action"
	FieldDetail  = "detail"
	FieldOutcome = "outcome"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one audited event. A non-nil Err marks it as a failure.
type Entry struct {
	Action string
	UserID string
	RoomID string
	Detail string
	Err    error
}

// Record emits e with msg.
func Record(ctx context.Context, e Entry, msg string) {
	l := log.Ctx(ctx)

	var evt *zerolog.Event
	if e.Err != nil {
		evt = l.Warn().Err(e.Err).Str(FieldOutcome, OutcomeFailure)
	} else {
		evt = l.Info().Str(FieldOutcome, OutcomeSuccess)
	}

	evt = evt.
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, e.Action)
	if e.UserID != "" {
		evt = evt.Str(log.FieldUserID, e.UserID)
	}
	if e.RoomID != "" {
		evt = evt.Str(log.FieldRoomID, e.RoomID)
	}
	if e.Detail != "" {
		evt = evt.Str(FieldDetail, e.Detail)
	}
	evt.Msg(msg)
}
